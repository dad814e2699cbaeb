// Package runner drives a robot at a fixed rate. It is the only goroutine that touches the robot;
// everything else talks to it through the command queue and snapshot subscriptions.
package runner

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/slamsim/control"
	"go.viam.com/slamsim/logging"
	"go.viam.com/slamsim/robot"
	"go.viam.com/slamsim/spatialmath"
)

const (
	// DefaultQueueSize is the number of commands that can wait for the next tick.
	DefaultQueueSize = 64
	// subscriberBuffer is the number of snapshots a slow subscriber can fall behind before
	// snapshots are dropped for it.
	subscriberBuffer = 16
)

// ErrStopped is returned when enqueueing on a runner that is not running.
var ErrStopped = errors.New("runner is not running")

// Robot is what the runner drives.
type Robot interface {
	Dispatch(ctx context.Context, cmd robot.Command) error
	Snapshot() robot.Snapshot
}

// Config describes the loop timing.
type Config struct {
	// Rate is the tick frequency in Hz. Each tick advances simulated time by 1/Rate.
	Rate float64
	// PublishEvery is the number of ticks between snapshots sent to subscribers.
	PublishEvery int
	QueueSize    int
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Rate <= 0 || math.IsInf(cfg.Rate, 0) || math.IsNaN(cfg.Rate) {
		return utils.NewConfigValidationError(path, fmt.Errorf("rate must be positive, got %v", cfg.Rate))
	}
	if cfg.PublishEvery < 0 {
		return utils.NewConfigValidationError(path, fmt.Errorf("publish interval must be non-negative, got %d", cfg.PublishEvery))
	}
	if cfg.QueueSize < 0 {
		return utils.NewConfigValidationError(path, fmt.Errorf("queue size must be non-negative, got %d", cfg.QueueSize))
	}
	return nil
}

// Runner ticks a robot on a clock.
type Runner struct {
	robot  Robot
	clock  clock.Clock
	period time.Duration
	dt     float64

	publishEvery int
	commands     chan robot.Command

	driver    *control.CircleDriver
	converter *control.WheelCommandConverter
	lastTwist spatialmath.Twist2D

	ticks atomic.Uint64

	subMu       sync.Mutex
	subscribers map[int]chan robot.Snapshot
	nextSubID   int

	mu         sync.Mutex
	cancelCtx  context.Context
	cancel     func()
	activeWork sync.WaitGroup

	logger logging.Logger
}

// Option configures optional parts of a Runner.
type Option func(*Runner)

// WithClock replaces the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(r *Runner) {
		r.clock = clk
	}
}

// WithCircleDriver makes the runner send the driver's twist to the robot whenever it changes.
func WithCircleDriver(driver *control.CircleDriver, converter *control.WheelCommandConverter) Option {
	return func(r *Runner) {
		r.driver = driver
		r.converter = converter
	}
}

// New returns a stopped runner.
func New(rob Robot, cfg Config, logger logging.Logger, opts ...Option) (*Runner, error) {
	if rob == nil {
		return nil, errors.New("runner needs a robot")
	}
	if err := cfg.Validate("runner"); err != nil {
		return nil, err
	}
	if cfg.PublishEvery == 0 {
		cfg.PublishEvery = 1
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	r := &Runner{
		robot:        rob,
		clock:        clock.New(),
		period:       time.Duration(float64(time.Second) / cfg.Rate),
		dt:           1 / cfg.Rate,
		publishEvery: cfg.PublishEvery,
		commands:     make(chan robot.Command, cfg.QueueSize),
		subscribers:  map[int]chan robot.Snapshot{},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.driver != nil && r.converter == nil {
		return nil, errors.New("circle driver needs a wheel command converter")
	}
	return r, nil
}

// Start begins ticking. The ticker is created before Start returns.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return errors.New("runner already started")
	}
	cancelCtx, cancel := context.WithCancel(ctx)
	r.cancelCtx = cancelCtx
	r.cancel = cancel

	ticker := r.clock.Ticker(r.period)
	r.activeWork.Add(1)
	utils.ManagedGo(func() {
		defer ticker.Stop()
		for {
			select {
			case <-cancelCtx.Done():
				return
			case <-ticker.C:
			}
			r.tick(cancelCtx)
		}
	}, r.activeWork.Done)
	r.logger.Infow("runner started", "period", r.period, "publish_every", r.publishEvery)
	return nil
}

// Stop ends the loop, waits for it to exit and closes every subscription.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	r.activeWork.Wait()

	r.subMu.Lock()
	for id, ch := range r.subscribers {
		close(ch)
		delete(r.subscribers, id)
	}
	r.subMu.Unlock()
	r.logger.Info("runner stopped")
}

// Enqueue queues cmd for dispatch before the next tick. It blocks while the queue is full.
func (r *Runner) Enqueue(ctx context.Context, cmd robot.Command) error {
	r.mu.Lock()
	cancelCtx := r.cancelCtx
	r.mu.Unlock()
	if cancelCtx == nil || cancelCtx.Err() != nil {
		return ErrStopped
	}
	select {
	case r.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-cancelCtx.Done():
		return ErrStopped
	}
}

// Subscribe returns a channel of snapshots and a function that cancels the subscription. A
// subscriber that does not keep up misses snapshots.
func (r *Runner) Subscribe() (<-chan robot.Snapshot, func()) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	id := r.nextSubID
	r.nextSubID++
	ch := make(chan robot.Snapshot, subscriberBuffer)
	r.subscribers[id] = ch
	return ch, func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		if ch, ok := r.subscribers[id]; ok {
			close(ch)
			delete(r.subscribers, id)
		}
	}
}

// Ticks returns the number of ticks run.
func (r *Runner) Ticks() uint64 {
	return r.ticks.Load()
}

func (r *Runner) tick(ctx context.Context) {
	r.drain(ctx)
	r.followDriver(ctx)
	if err := r.robot.Dispatch(ctx, robot.Tick{DT: r.dt}); err != nil {
		r.logger.Errorw("tick failed", "error", err)
		return
	}
	if n := r.ticks.Add(1); n%uint64(r.publishEvery) == 0 {
		r.publish(r.robot.Snapshot())
	}
}

func (r *Runner) drain(ctx context.Context) {
	for {
		select {
		case cmd := <-r.commands:
			if err := r.robot.Dispatch(ctx, cmd); err != nil {
				r.logger.Warnw("command failed", "command", cmd, "error", err)
			}
		default:
			return
		}
	}
}

func (r *Runner) followDriver(ctx context.Context) {
	if r.driver == nil {
		return
	}
	twist := r.driver.Twist()
	if twist == r.lastTwist {
		return
	}
	r.lastTwist = twist
	cmd, err := r.converter.Convert(twist)
	if err != nil {
		r.logger.Warnw("cannot follow twist", "twist", twist, "error", err)
		return
	}
	if err := r.robot.Dispatch(ctx, robot.ApplyWheelCommand{Left: float64(cmd.Left), Right: float64(cmd.Right)}); err != nil {
		r.logger.Warnw("wheel command failed", "error", err)
	}
}

func (r *Runner) publish(snap robot.Snapshot) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}
