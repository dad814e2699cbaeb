package slam

import (
	"encoding/csv"
	"io"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/natefinch/lumberjack.v2"

	"go.viam.com/slamsim/spatialmath"
)

var trajectoryHeader = []string{"timestamp", "x", "y", "theta"}

// TrajectoryLogger appends pose estimates as csv rows of timestamp, x, y, theta. The timestamp is
// simulated time in seconds. It is a diagnostic sink; nothing reads it back.
type TrajectoryLogger struct {
	mu      sync.Mutex
	w       *csv.Writer
	closer  io.Closer
	started bool
}

// NewTrajectoryLogger writes rows to w. If w is an io.Closer it is closed by Close.
func NewTrajectoryLogger(w io.Writer) *TrajectoryLogger {
	tl := &TrajectoryLogger{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		tl.closer = c
	}
	return tl
}

// NewRotatingTrajectoryLogger writes rows to a file that is rotated once it grows past maxSizeMB.
func NewRotatingTrajectoryLogger(path string, maxSizeMB, maxBackups int) *TrajectoryLogger {
	return NewTrajectoryLogger(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	})
}

// Log appends one row and flushes it.
func (tl *TrajectoryLogger) Log(timestamp float64, p spatialmath.Pose2D) error {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if !tl.started {
		if err := tl.w.Write(trajectoryHeader); err != nil {
			return errors.Wrap(err, "failed to write trajectory header")
		}
		tl.started = true
	}
	row := []string{
		strconv.FormatFloat(timestamp, 'f', -1, 64),
		strconv.FormatFloat(p.X, 'f', -1, 64),
		strconv.FormatFloat(p.Y, 'f', -1, 64),
		strconv.FormatFloat(p.Theta, 'f', -1, 64),
	}
	if err := tl.w.Write(row); err != nil {
		return errors.Wrap(err, "failed to write trajectory row")
	}
	tl.w.Flush()
	return tl.w.Error()
}

// Close flushes pending rows and closes the underlying writer.
func (tl *TrajectoryLogger) Close() error {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.w.Flush()
	err := tl.w.Error()
	if tl.closer != nil {
		err = multierr.Combine(err, tl.closer.Close())
	}
	return err
}
