package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/slamsim/config"
	"go.viam.com/slamsim/control"
	"go.viam.com/slamsim/logging"
	"go.viam.com/slamsim/robot"
	"go.viam.com/slamsim/robot/runner"
	"go.viam.com/slamsim/services/slam"
	"go.viam.com/slamsim/web/server"
)

const (
	trajectoryMaxSizeMB  = 50
	trajectoryMaxBackups = 3
)

// simulation holds everything built from a config.
type simulation struct {
	cfg       *config.Config
	robot     *robot.Robot
	driver    *control.CircleDriver
	converter *control.WheelCommandConverter
	logger    logging.Logger
}

func newSimulation(c *cli.Context) (*simulation, error) {
	cfg, err := config.Read(c.String(flagConfig))
	if err != nil {
		return nil, err
	}
	if path := c.String(flagTrajectoryLog); path != "" {
		cfg.TrajectoryLog = path
	}

	logger := logging.NewWriterLogger("slamsim", cfg.LogLevel, c.App.ErrWriter)
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	}

	robotCfg, err := cfg.RobotConfig()
	if err != nil {
		return nil, err
	}
	var opts []robot.Option
	if cfg.TrajectoryLog != "" {
		opts = append(opts, robot.WithTrajectoryLogger(
			slam.NewRotatingTrajectoryLogger(cfg.TrajectoryLog, trajectoryMaxSizeMB, trajectoryMaxBackups)))
	}
	rob, err := robot.New(robotCfg, logger.Sublogger("robot"), opts...)
	if err != nil {
		return nil, err
	}
	converter, err := control.NewWheelCommandConverter(rob.Kinematics(), cfg.ConverterConfig())
	if err != nil {
		return nil, multierr.Combine(err, rob.Close())
	}
	return &simulation{
		cfg:       cfg,
		robot:     rob,
		driver:    control.NewCircleDriver(logger.Sublogger("circle")),
		converter: converter,
		logger:    logger,
	}, nil
}

// RunAction ticks the simulation in real time, optionally serving it over a websocket.
func RunAction(c *cli.Context) (err error) {
	s, err := newSimulation(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, s.robot.Close(), s.logger.Sync())
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := c.Duration(flagDuration); d > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	run, err := runner.New(s.robot, s.cfg.RunnerConfig(), s.logger.Sublogger("runner"),
		runner.WithCircleDriver(s.driver, s.converter))
	if err != nil {
		return err
	}
	if c.Bool(flagCircle) {
		if err := s.driver.Control(s.cfg.Circle.Velocity, s.cfg.Circle.Radius); err != nil {
			return err
		}
	}
	if err := run.Start(ctx); err != nil {
		return err
	}
	defer run.Stop()

	listen := s.cfg.Listen
	if c.IsSet(flagListen) {
		listen = c.String(flagListen)
	}
	if listen == "" {
		<-ctx.Done()
	} else {
		srv := server.New(run, s.logger.Sublogger("web"), server.WithCircleDriver(s.driver))
		if err := srv.ListenAndServe(ctx, listen); err != nil {
			return errors.Wrap(err, "websocket server failed")
		}
	}
	s.logger.Infow("simulation finished", "ticks", run.Ticks())
	return nil
}

// SimulateAction runs a fixed number of ticks without waiting between them and prints the last
// snapshot as json.
func SimulateAction(c *cli.Context) (err error) {
	s, err := newSimulation(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, s.robot.Close(), s.logger.Sync())
	}()

	ctx := c.Context
	if c.Bool(flagCircle) {
		if err := s.driver.Control(s.cfg.Circle.Velocity, s.cfg.Circle.Radius); err != nil {
			return err
		}
		cmd, err := s.converter.Convert(s.driver.Twist())
		if err != nil {
			return err
		}
		if err := s.robot.Dispatch(ctx, robot.ApplyWheelCommand{Left: float64(cmd.Left), Right: float64(cmd.Right)}); err != nil {
			return err
		}
	}
	tick := robot.Tick{DT: 1 / s.cfg.Rate}
	for i := 0; i < c.Int(flagTicks); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.robot.Dispatch(ctx, tick); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(s.robot.Snapshot())
}

// ValidateAction reads a config and reports whether it is usable.
func ValidateAction(c *cli.Context) error {
	cfg, err := config.Read(c.String(flagConfig))
	if err != nil {
		return err
	}
	if _, err := cfg.RobotConfig(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s is valid\n", c.String(flagConfig))
	return nil
}
