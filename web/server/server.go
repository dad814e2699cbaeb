// Package server exposes a running simulation over a websocket. Clients send JSON commands and
// receive JSON snapshots.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/slamsim/control"
	"go.viam.com/slamsim/logging"
	"go.viam.com/slamsim/robot"
	"go.viam.com/slamsim/spatialmath"
)

const (
	writeTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
	errorBuffer     = 4
)

// Message types understood by the server.
const (
	TypeWheelCmd    = "wheel_cmd"
	TypeTeleport    = "teleport"
	TypeReset       = "reset"
	TypeInitialPose = "initial_pose"
	TypeCircle      = "circle"
	TypeReverse     = "reverse"
	TypeStop        = "stop"

	TypeSnapshot = "snapshot"
	TypeError    = "error"
)

// Runner is the part of the runner the server needs.
type Runner interface {
	Enqueue(ctx context.Context, cmd robot.Command) error
	Subscribe() (<-chan robot.Snapshot, func())
}

// Message is an inbound client message. Which fields are read depends on Type.
type Message struct {
	Type string `json:"type"`

	Left  float64 `json:"left,omitempty"`
	Right float64 `json:"right,omitempty"`

	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	Theta float64 `json:"theta,omitempty"`

	Velocity float64 `json:"velocity,omitempty"`
	Radius   float64 `json:"radius,omitempty"`
}

// Command converts a message into a robot command. Circle messages are not robot commands and
// return an error.
func (m Message) Command() (robot.Command, error) {
	switch m.Type {
	case TypeWheelCmd:
		return robot.ApplyWheelCommand{Left: m.Left, Right: m.Right}, nil
	case TypeTeleport:
		return robot.Teleport{Pose: spatialmath.NewPose2D(m.X, m.Y, m.Theta)}, nil
	case TypeReset:
		return robot.Reset{}, nil
	case TypeInitialPose:
		return robot.SetInitialPose{Pose: spatialmath.NewPose2D(m.X, m.Y, m.Theta)}, nil
	default:
		return nil, errors.Errorf("unknown message type %q", m.Type)
	}
}

type snapshotMessage struct {
	Type string `json:"type"`
	robot.Snapshot
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Server upgrades http connections on /ws and relays between clients and a runner.
type Server struct {
	runner   Runner
	driver   *control.CircleDriver
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	logger   logging.Logger
}

// Option configures optional parts of a Server.
type Option func(*Server)

// WithCircleDriver enables the circle, reverse and stop messages.
func WithCircleDriver(driver *control.CircleDriver) Option {
	return func(s *Server) {
		s.driver = driver
	}
}

// New returns a server relaying to runner.
func New(runner Runner, logger logging.Logger, opts ...Option) *Server {
	s := &Server{
		runner: runner,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux:    http.NewServeMux(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("/ws", s.handleWebsocket)
	return s
}

// Handler returns the http handler serving /ws.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	utils.PanicCapturingGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warnw("websocket server shutdown", "error", err)
		}
	})
	s.logger.Infow("serving websocket", "address", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	// subscribe before upgrading so the client sees every snapshot published after the handshake
	snapshots, unsubscribe := s.runner.Subscribe()
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		unsubscribe()
		s.logger.Debugw("websocket upgrade failed", "error", err)
		return
	}
	logger := s.logger.Sublogger(conn.RemoteAddr().String())
	logger.Debug("client connected")

	errs := make(chan string, errorBuffer)
	readerDone := make(chan struct{})
	writerDone := make(chan struct{})
	utils.PanicCapturingGo(func() {
		defer close(writerDone)
		s.writeLoop(conn, snapshots, errs, readerDone, logger)
	})

	s.readLoop(r.Context(), conn, errs, logger)
	close(readerDone)
	unsubscribe()
	<-writerDone
	utils.UncheckedError(conn.Close())
	logger.Debug("client disconnected")
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, errs chan<- string, logger logging.Logger) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debugw("websocket read failed", "error", err)
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reportError(errs, errors.Wrap(err, "malformed message"))
			continue
		}
		if err := s.handle(ctx, msg); err != nil {
			s.reportError(errs, err)
		}
	}
}

func (s *Server) handle(ctx context.Context, msg Message) error {
	switch msg.Type {
	case TypeCircle, TypeReverse, TypeStop:
		if s.driver == nil {
			return errors.Errorf("%q is not enabled", msg.Type)
		}
		switch msg.Type {
		case TypeCircle:
			return s.driver.Control(msg.Velocity, msg.Radius)
		case TypeReverse:
			s.driver.Reverse()
		default:
			s.driver.Stop()
		}
		return nil
	}
	cmd, err := msg.Command()
	if err != nil {
		return err
	}
	return s.runner.Enqueue(ctx, cmd)
}

func (s *Server) reportError(errs chan<- string, err error) {
	select {
	case errs <- err.Error():
	default:
	}
}

// writeLoop is the only writer on conn. It exits when the reader is done, the subscription
// closes or a write fails.
func (s *Server) writeLoop(
	conn *websocket.Conn,
	snapshots <-chan robot.Snapshot,
	errs <-chan string,
	readerDone <-chan struct{},
	logger logging.Logger,
) {
	write := func(v interface{}) bool {
		utils.UncheckedError(conn.SetWriteDeadline(time.Now().Add(writeTimeout)))
		if err := conn.WriteJSON(v); err != nil {
			logger.Debugw("websocket write failed", "error", err)
			return false
		}
		return true
	}
	for {
		select {
		case <-readerDone:
			return
		case snap, ok := <-snapshots:
			if !ok {
				utils.UncheckedError(conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeTimeout)))
				utils.UncheckedError(conn.Close())
				return
			}
			if !write(snapshotMessage{Type: TypeSnapshot, Snapshot: snap}) {
				// unblock the reader
				utils.UncheckedError(conn.Close())
				return
			}
		case msg := <-errs:
			if !write(errorMessage{Type: TypeError, Error: msg}) {
				utils.UncheckedError(conn.Close())
				return
			}
		}
	}
}
