package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gap-navigator/internal/app"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

const (
	flagConfig     = "config"
	flagStrategy   = "strategy"
	flagPolicy     = "policy"
	flagSource     = "source"
	flagJSONLines  = "json-lines"
	flagUDP        = "udp"
	flagOverlayDir = "overlay-dir"
	flagLogLevel   = "log-level"
	flagJSONLogs   = "json-logs"
	flagFormat     = "format"
)

func main() {
	cliApp := &cli.App{
		Name:    app.AppName,
		Usage:   "decide how a drone should pass the gap in front of it, frame by frame",
		Version: app.AppVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE` (.json, .yaml or .yml)",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "debug, info, warn, error or disabled",
			},
			&cli.BoolFlag{
				Name:  flagJSONLogs,
				Usage: "write logs as JSON instead of console lines",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "process recorded frames and emit one decision per frame",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagSource, Aliases: []string{"s"}, Usage: "directory of NNNNNN_color.png / NNNNNN_depth.png pairs"},
					&cli.StringFlag{Name: flagStrategy, Usage: "depth_near, depth_band or color_match"},
					&cli.StringFlag{Name: flagPolicy, Usage: "max_bbox_area or max_contour_area"},
					&cli.BoolFlag{Name: flagJSONLines, Usage: "write outcomes to stdout as JSON lines"},
					&cli.StringFlag{Name: flagUDP, Usage: "send decisions as JSON datagrams to `HOST:PORT`"},
					&cli.StringFlag{Name: flagOverlayDir, Usage: "write annotated frames to `DIR`"},
				},
				Action: runCommand,
			},
			{
				Name:  "calibrate",
				Usage: "measure the color marker and print the matching roi section",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagSource, Aliases: []string{"s"}, Usage: "directory of recorded frames showing the marker"},
				},
				Action: calibrateCommand,
			},
			{
				Name:  "config",
				Usage: "print the effective configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagFormat, Value: "yaml", Usage: "yaml or json"},
				},
				Action: configCommand,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", app.AppName, err)
		os.Exit(1)
	}
}

func overrides(c *cli.Context) app.Overrides {
	return app.Overrides{
		Strategy:   c.String(flagStrategy),
		Policy:     c.String(flagPolicy),
		SourceDir:  c.String(flagSource),
		JSONLines:  c.Bool(flagJSONLines),
		UDPAddr:    c.String(flagUDP),
		OverlayDir: c.String(flagOverlayDir),
		LogLevel:   c.String(flagLogLevel),
		JSONLogs:   c.Bool(flagJSONLogs),
	}
}

func newApplication(c *cli.Context) (*app.Application, error) {
	cfg, err := app.LoadConfig(c.String(flagConfig), overrides(c))
	if err != nil {
		return nil, err
	}
	return app.New(c.Context, cfg, os.Stdout, os.Stderr)
}

func runCommand(c *cli.Context) (err error) {
	a, err := newApplication(c)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); err == nil {
			err = closeErr
		}
	}()
	stop := a.Listen()
	defer stop()

	src, err := a.OpenSource()
	if err != nil {
		return err
	}
	sinks, err := a.Sinks()
	if err != nil {
		return err
	}

	stats, err := a.Run(src, sinks)
	if err != nil {
		return err
	}
	a.Logger().Info("Main", "run summary", map[string]interface{}{
		"frames":    stats.Frames,
		"decided":   stats.Decided,
		"decisions": stats.Decisions,
		"skipped":   stats.Skipped,
	})
	return nil
}

func calibrateCommand(c *cli.Context) (err error) {
	a, err := newApplication(c)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); err == nil {
			err = closeErr
		}
	}()
	stop := a.Listen()
	defer stop()

	src, err := a.OpenSource()
	if err != nil {
		return err
	}
	result, err := a.Calibrate(src)
	if err != nil {
		return err
	}
	out, err := result.YAML()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func configCommand(c *cli.Context) error {
	cfg, err := app.LoadConfig(c.String(flagConfig), overrides(c))
	if err != nil {
		return err
	}

	switch c.String(flagFormat) {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("unknown format %q", c.String(flagFormat))
	}
}
