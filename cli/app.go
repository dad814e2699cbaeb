// Package cli contains the slamsim command line interface.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	flagConfig        = "config"
	flagDebug         = "debug"
	flagListen        = "listen"
	flagTrajectoryLog = "trajectory-log"
	flagCircle        = "circle"
	flagDuration      = "duration"
	flagTicks         = "ticks"
)

var configFlag = &cli.StringFlag{
	Name:     flagConfig,
	Aliases:  []string{"c"},
	Usage:    "load configuration from `FILE`",
	Required: true,
}

var app = &cli.App{
	Name:            "slamsim",
	Usage:           "simulate a differential drive robot and map its surroundings with an EKF",
	HideHelpCommand: true,
	// errors are returned from Run and reported by main rather than exiting inside the app
	ExitErrHandler: func(*cli.Context, error) {},
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:  "run",
			Usage: "run the simulation in real time",
			Flags: []cli.Flag{
				configFlag,
				&cli.StringFlag{
					Name:  flagListen,
					Usage: "serve the websocket on `ADDRESS`, overriding the config",
				},
				&cli.StringFlag{
					Name:  flagTrajectoryLog,
					Usage: "append the pose estimate to csv `FILE`, overriding the config",
				},
				&cli.BoolFlag{
					Name:  flagCircle,
					Usage: "start driving the configured circle immediately",
				},
				&cli.DurationFlag{
					Name:  flagDuration,
					Usage: "stop after this long; zero runs until interrupted",
				},
			},
			Action: RunAction,
		},
		{
			Name:  "simulate",
			Usage: "run a fixed number of ticks as fast as possible and print the final state",
			Flags: []cli.Flag{
				configFlag,
				&cli.IntFlag{
					Name:  flagTicks,
					Usage: "number of ticks to run",
					Value: 1000,
				},
				&cli.BoolFlag{
					Name:  flagCircle,
					Usage: "drive the configured circle",
					Value: true,
				},
				&cli.StringFlag{
					Name:  flagTrajectoryLog,
					Usage: "append the pose estimate to csv `FILE`, overriding the config",
				},
			},
			Action: SimulateAction,
		},
		{
			Name:   "validate",
			Usage:  "check a config file",
			Flags:  []cli.Flag{configFlag},
			Action: ValidateAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
