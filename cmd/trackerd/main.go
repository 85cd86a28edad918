// Package main is the trackerd command: it runs the trackers described by a configuration file
// and logs the pose of every tool.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	_ "go.igtrack.org/tracking/components/register"
	"go.igtrack.org/tracking/config"
	"go.igtrack.org/tracking/controller"
	"go.igtrack.org/tracking/events"
	"go.igtrack.org/tracking/logging"
	"go.igtrack.org/tracking/referenceframe"
	"go.igtrack.org/tracking/registry"
	"go.igtrack.org/tracking/tracker"
	"go.igtrack.org/tracking/transform"
)

const (
	// Flags.
	flagConfig   = "config"
	flagWatch    = "watch"
	flagDuration = "duration"
	flagInterval = "report-interval"
	flagMachine  = "machine"
	flagKind     = "kind"
	flagDebug    = "debug"
	flagLogFile  = "log-file"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "trackerd",
		Usage: "run surgical trackers and report tool poses",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: flagDebug, Usage: "log at debug level"},
			&cli.StringFlag{Name: flagLogFile, Usage: "also write logs to a rotating file"},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "initialize and start every configured tracker",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagConfig, Aliases: []string{"c"}, Required: true, Usage: "tracker configuration file"},
					&cli.BoolFlag{Name: flagWatch, Usage: "reinitialize when the configuration file changes"},
					&cli.DurationFlag{Name: flagDuration, Usage: "stop after this long; zero runs until interrupted"},
					&cli.DurationFlag{Name: flagInterval, Value: time.Second, Usage: "how often the tool pose table is printed"},
				},
				Action: runAction,
			},
			{
				Name:  "validate",
				Usage: "check a configuration file without touching hardware",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagConfig, Aliases: []string{"c"}, Required: true},
				},
				Action: validateAction,
			},
			{
				Name:  "schema",
				Usage: "print the JSON schema of configuration files, or of one kind's attributes",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagKind, Usage: "print the tracker and tool attributes of this kind"},
				},
				Action: schemaAction,
			},
			{
				Name:  "fsm",
				Usage: "print a state machine as Graphviz DOT",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagMachine, Value: "tracker", Usage: "tracker, tool or controller"},
				},
				Action: fsmAction,
			},
		},
	}
}

func newLogger(c *cli.Context) logging.Logger {
	logger := logging.NewLogger("trackerd")
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	if path := c.String(flagLogFile); path != "" {
		logger.AddAppender(logging.NewFileAppender(logging.FileAppenderConfig{Path: path, MaxBackups: 5, MaxAgeDays: 14}))
	}
	return logger
}

func validateAction(c *cli.Context) error {
	logger := newLogger(c)
	cfg, err := config.Read(c.Context, c.Path(flagConfig), logger)
	if err != nil {
		return err
	}
	for _, tc := range cfg.Trackers {
		if _, ok := registry.LookupDriver(tc.Kind); !ok {
			logger.Warnw("no driver for kind in this build", "tracker", tc.Name, "kind", tc.Kind)
		}
		logger.Infow("tracker ok", "tracker", tc.Name, "kind", tc.Kind, "tools", len(tc.Tools))
	}
	return nil
}

func schemaAction(c *cli.Context) error {
	var schema interface{} = config.Schema()
	if kind := c.String(flagKind); kind != "" {
		attrs, err := config.AttributeSchema(config.Kind(kind))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		schema = attrs
	}
	md, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(md))
	return err
}

func fsmAction(c *cli.Context) error {
	logger := logging.NewBlankLogger("fsm")
	graph := referenceframe.NewGraph()
	out := c.App.Writer
	switch machine := c.String(flagMachine); machine {
	case "tracker":
		return tracker.NewTracker(tracker.Options{Name: "tracker", Kind: config.KindSimulated}, nil, graph, nil, logger).
			ExportStateMachine(out)
	case "tool":
		return tracker.NewTool(&config.ToolConfig{Name: "tool"}, graph, nil, logger).ExportStateMachine(out)
	case "controller":
		return controller.New(graph, nil, controller.Options{}, logger).ExportStateMachine(out)
	default:
		return errors.Errorf("unknown state machine %q", machine)
	}
}

func runAction(c *cli.Context) error {
	interval := c.Duration(flagInterval)
	if interval <= 0 {
		return cli.Exit(fmt.Sprintf("--%s must be positive, got %s", flagInterval, interval), 1)
	}
	logger := newLogger(c)
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := c.Duration(flagDuration); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	path := c.Path(flagConfig)
	cfg, err := config.Read(ctx, path, logger)
	if err != nil {
		return err
	}

	var configs <-chan *config.Config
	if c.Bool(flagWatch) {
		watcher, err := config.NewWatcher(path, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnw("closing config watcher", "error", err)
			}
		}()
		configs = watcher.Config()
	}

	graph := referenceframe.NewGraph()
	sink := events.LogSink(logger.Sublogger("events"))
	running, err := startAll(ctx, graph, sink, cfg, logger)
	defer func() {
		if err := shutdownAll(running); err != nil {
			logger.Errorw("shutdown failed", "error", err)
		}
	}()
	if err != nil {
		return err
	}

	reporter := newPoseReporter()
	report := transform.Clock().Ticker(interval)
	defer report.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-report.C:
			reporter.report(ctx, running, c.App.Writer)
		case newCfg, ok := <-configs:
			if !ok {
				configs = nil
				continue
			}
			diff, err := config.Diff(cfg, newCfg)
			if err != nil {
				logger.Warnw("diffing configurations", "error", err)
			}
			if diff == "" && err == nil {
				logger.Debug("configuration file rewritten without changes")
				continue
			}
			logger.Infow("configuration changed, reinitializing", "diff", diff)
			cfg = newCfg
			if err := shutdownAll(running); err != nil {
				logger.Warnw("shutdown before reinitializing failed", "error", err)
			}
			running, err = startAll(ctx, graph, sink, newCfg, logger)
			if err != nil {
				logger.Errorw("reinitializing failed", "error", err)
			}
		}
	}
}

// startAll brings every tracker up concurrently; each one owns its own port. The controllers are
// returned even on failure so the caller can shut them down.
func startAll(ctx context.Context, graph *referenceframe.Graph, sink events.Sink, cfg *config.Config, logger logging.Logger,
) ([]*controller.Controller, error) {
	running := make([]*controller.Controller, len(cfg.Trackers))
	for i := range cfg.Trackers {
		running[i] = controller.New(graph, sink, controller.Options{}, logger.Sublogger(cfg.Trackers[i].Name))
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, ctrl := range running {
		tc := &cfg.Trackers[i]
		g.Go(func() error {
			if err := ctrl.RequestInitialize(gctx, tc); err != nil {
				return errors.Wrapf(err, "initializing %q", tc.Name)
			}
			return errors.Wrapf(ctrl.RequestStartTracking(gctx), "starting %q", tc.Name)
		})
	}
	return running, g.Wait()
}

func shutdownAll(running []*controller.Controller) error {
	// the run context may already be cancelled
	ctx := context.Background()
	var errs error
	for _, ctrl := range running {
		errs = multierr.Append(errs, ctrl.RequestShutdown(ctx))
	}
	return errs
}
