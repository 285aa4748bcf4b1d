// Package cli provides the command-line interface for uiharness.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uiharness/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "platform",
		Aliases: []string{"p"},
		Usage:   "Target platform (DESKTOP, MOBILE_NATIVE, MOBILE_WEB)",
		Value:   "DESKTOP",
		EnvVars: []string{"UIHARNESS_PLATFORM"},
	},
	&cli.StringFlag{
		Name:    "mode",
		Aliases: []string{"m"},
		Usage:   "Execution mode (LOCAL, GRID, MOBILE); default from settings",
		EnvVars: []string{"UIHARNESS_MODE"},
	},
	&cli.StringFlag{
		Name:    "browser",
		Aliases: []string{"b"},
		Usage:   "Desktop browser (CHROME, CHROME_HEADLESS, FIREFOX, FIREFOX_HEADLESS)",
		EnvVars: []string{"UIHARNESS_BROWSER"},
	},
	&cli.StringFlag{
		Name:    "os",
		Usage:   "Mobile OS (ANDROID, IOS)",
		EnvVars: []string{"UIHARNESS_OS"},
	},
	&cli.StringFlag{
		Name:    "device",
		Usage:   "Mobile device name",
		EnvVars: []string{"UIHARNESS_DEVICE"},
	},
	&cli.StringFlag{
		Name:    "os-version",
		Usage:   "Mobile OS version",
		EnvVars: []string{"UIHARNESS_OS_VERSION"},
	},
	&cli.StringFlag{
		Name:    "endpoint",
		Aliases: []string{"e"},
		Usage:   "Grid, Appium or running driver URL",
		EnvVars: []string{"UIHARNESS_ENDPOINT"},
	},
	&cli.StringFlag{
		Name:    "settings",
		Usage:   "Path to harness.yaml (default: ./harness.yaml if present)",
		EnvVars: []string{"UIHARNESS_SETTINGS"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Write debug logs to this file",
		EnvVars: []string{"UIHARNESS_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Log to stderr",
		EnvVars: []string{"UIHARNESS_VERBOSE"},
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "uiharness",
		Usage:   "Open WebDriver and Appium sessions and run page checks",
		Version: Version,
		Description: `uiharness builds capabilities for a desktop browser, Selenium Grid or
Appium target, opens a session and runs checks against it.

Examples:
  uiharness caps
  uiharness --platform MOBILE_NATIVE --os ANDROID --device Pixel_7 --os-version 14 caps
  uiharness --mode GRID --endpoint http://localhost:4444/wd/hub open https://example.com
  uiharness --browser CHROME_HEADLESS links --images https://example.com
  uiharness run --provider ChromeParallel https://example.com`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			capsCommand,
			openCommand,
			linksCommand,
			runCommand,
			providersCommand,
		},
		Before: initLogging,
		After: func(*cli.Context) error {
			logger.Close()
			return nil
		},
	}
}

func initLogging(c *cli.Context) error {
	if path := c.String("log-file"); path != "" {
		if err := logger.Init(path); err != nil {
			fmt.Fprintf(c.App.ErrWriter, "Warning: %v\n", err)
		}
	}
	if c.Bool("verbose") {
		logger.EnableVerbose(c.App.ErrWriter)
	}
	return nil
}

// Execute runs the CLI.
func Execute() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
