package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bsid.es/klaxon/config"
	"bsid.es/klaxon/sqlite"
	"github.com/lmittmann/tint"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// app holds what every command shares. It is filled by the Before hook.
type app struct {
	fs     afero.Fs
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time

	cfg    config.Config
	logger *slog.Logger
}

func main() {
	a := &app{
		fs:     afero.NewOsFs(),
		stdout: os.Stdout,
		stderr: os.Stderr,
		now:    time.Now,
	}
	if err := a.cli().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) cli() *cli.App {
	app := cli.NewApp()
	app.Name = "klaxon"
	app.HelpName = "klaxon"
	app.Usage = "desktop alarm clock"
	app.UsageText = "klaxon [global options] <command> [arguments...]"
	app.Writer = a.stdout
	app.ErrWriter = a.stderr
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "configuration file",
			Value: config.DefaultPath(),
		},
		cli.StringFlag{
			Name:  "log-level, l",
			Usage: "debug, info, warn or error (overrides the configuration)",
		},
		cli.StringFlag{
			Name:  "database, d",
			Usage: "alarm database (overrides the configuration)",
		},
	}
	app.Before = a.setup
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "fire alarms until interrupted",
			Action: a.run,
		},
		{
			Name:      "add",
			Usage:     "create an alarm",
			ArgsUsage: " ",
			Flags:     append(definitionFlags(), disabledFlag),
			Action:    a.add,
		},
		{
			Name:      "modify",
			Aliases:   []string{"edit"},
			Usage:     "change an alarm",
			ArgsUsage: "<id>",
			Flags:     definitionFlags(),
			Action:    a.modify,
		},
		{
			Name:      "remove",
			Aliases:   []string{"rm"},
			Usage:     "delete alarms",
			ArgsUsage: "<id>...",
			Action:    a.remove,
		},
		{
			Name:      "enable",
			Usage:     "switch alarms on",
			ArgsUsage: "<id>...",
			Action:    a.setEnabled(true),
		},
		{
			Name:      "disable",
			Usage:     "switch alarms off",
			ArgsUsage: "<id>...",
			Action:    a.setEnabled(false),
		},
		{
			Name:    "list",
			Aliases: []string{"ls"},
			Usage:   "show every alarm and when it rings next",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "json",
					Usage: "print the alarms as JSON",
				},
			},
			Action: a.list,
		},
		{
			Name:   "next",
			Usage:  "show the next alarm to ring",
			Action: a.next,
		},
		{
			Name:  "config",
			Usage: "manage the configuration file",
			Subcommands: []cli.Command{
				{
					Name:  "init",
					Usage: "write the default configuration to the --config path",
					Flags: []cli.Flag{
						cli.BoolFlag{
							Name:  "force, f",
							Usage: "replace an existing file",
						},
					},
					Action: a.initConfig,
				},
			},
		},
	}
	return app
}

// setup loads the configuration and installs the logger.
func (a *app) setup(c *cli.Context) error {
	cfg, err := config.Load(a.fs, c.String("config"))
	if err != nil {
		return err
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v := c.String("database"); v != "" {
		cfg.Database = v
	}
	level, ok := logLevels[strings.ToLower(cfg.LogLevel)]
	if !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	a.cfg = cfg
	a.logger = slog.New(tint.NewHandler(a.stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) openStore() (*sqlite.Store, error) {
	if a.cfg.Database != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(a.cfg.Database), 0o755); err != nil {
			return nil, err
		}
	}
	return sqlite.Open(a.cfg.Database)
}
