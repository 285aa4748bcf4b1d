package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uiharness/pkg/capabilities"
	"github.com/devicelab-dev/uiharness/pkg/config"
	"github.com/devicelab-dev/uiharness/pkg/executor"
	"github.com/devicelab-dev/uiharness/pkg/linkcheck"
	"github.com/devicelab-dev/uiharness/pkg/logger"
	"github.com/devicelab-dev/uiharness/pkg/page"
	"github.com/devicelab-dev/uiharness/pkg/report"
	"github.com/devicelab-dev/uiharness/pkg/session"
	"github.com/devicelab-dev/uiharness/pkg/wait"
)

var sessionFlags = []cli.Flag{
	&cli.DurationFlag{
		Name:  "timeout",
		Usage: "How long to wait for the page to load",
		Value: wait.DefaultTimeout,
	},
	&cli.IntFlag{
		Name:  "retries",
		Usage: "Session creation attempts",
		Value: 1,
	},
}

var capsCommand = &cli.Command{
	Name:  "caps",
	Usage: "Print the capability set for the selected target",
	Action: func(c *cli.Context) error {
		cfg, _, err := configFromFlags(c)
		if err != nil {
			return err
		}
		caps, err := capabilities.Build(cfg)
		if err != nil {
			return err
		}
		data, err := caps.Encode()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s\n%s\n", cfg, data)
		return nil
	},
}

var openCommand = &cli.Command{
	Name:      "open",
	Usage:     "Open a session, load a page and print its title",
	ArgsUsage: "<url>",
	Flags:     sessionFlags,
	Action: func(c *cli.Context) error {
		url := c.Args().First()
		if url == "" {
			return fmt.Errorf("url is required")
		}
		rec := report.NewConsole(c.App.Writer)
		return withSession(c, rec, func(ctx context.Context, p *page.Base) error {
			if err := p.Open(ctx, url); err != nil {
				return err
			}
			title, err := p.Session.Title(ctx)
			if err != nil {
				return err
			}
			rec.Record("Title", title, report.Info)
			return nil
		})
	},
}

var linksCommand = &cli.Command{
	Name:      "links",
	Usage:     "Load a page and report broken links",
	ArgsUsage: "<url>",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "images",
			Usage: "Also check <img> sources",
		},
	}, sessionFlags...),
	Action: func(c *cli.Context) error {
		url := c.Args().First()
		if url == "" {
			return fmt.Errorf("url is required")
		}
		rec := report.NewConsole(c.App.Writer)
		return withSession(c, rec, func(ctx context.Context, p *page.Base) error {
			if err := p.Open(ctx, url); err != nil {
				return err
			}
			checker := linkcheck.New(rec)
			results, err := checker.CheckLinks(ctx, p.Session)
			if err != nil {
				return err
			}
			if c.Bool("images") {
				imgs, err := checker.CheckImages(ctx, p.Session)
				if err != nil {
					return err
				}
				results = append(results, imgs...)
			}
			return brokenError(results)
		})
	},
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Open a page on every configuration of a data provider",
	ArgsUsage: "<url>",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:     "provider",
			Usage:    "Data provider name (see 'uiharness providers')",
			Required: true,
		},
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Max concurrent sessions (0 = all)",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: <home>/reports)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
	}, sessionFlags...),
	Action: runProvider,
}

var providersCommand = &cli.Command{
	Name:      "providers",
	Usage:     "List data providers, or the configurations one produces",
	ArgsUsage: "[provider]",
	Action: func(c *cli.Context) error {
		name := c.Args().First()
		if name == "" {
			for _, n := range config.ProviderNames() {
				fmt.Fprintln(c.App.Writer, n)
			}
			return nil
		}
		cfgs, err := providerConfigs(c, name)
		if err != nil {
			return err
		}
		for _, cfg := range cfgs {
			fmt.Fprintln(c.App.Writer, cfg)
		}
		return nil
	},
}

func loadSettings(c *cli.Context) (*config.Settings, error) {
	if path := c.String("settings"); path != "" {
		s, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load settings: %w", err)
		}
		return s, nil
	}
	return config.LoadFromDir(".")
}

// configFromFlags builds one configuration from the global flags, filling
// gaps from the settings file.
func configFromFlags(c *cli.Context) (config.ExecutionConfiguration, *config.Settings, error) {
	s, err := loadSettings(c)
	if err != nil {
		return config.ExecutionConfiguration{}, nil, err
	}

	platform, err := config.ParsePlatform(c.String("platform"))
	if err != nil {
		return config.ExecutionConfiguration{}, nil, err
	}
	b := config.NewBuilder("CLI", c.Command.Name).Platform(platform)

	modeName := c.String("mode")
	if platform == config.PlatformDesktop {
		if modeName == "" {
			modeName = s.DefaultExecutionMode
		}
		browserName := c.String("browser")
		if browserName == "" {
			browserName = s.DefaultBrowser
		}
		browser, err := config.ParseBrowser(browserName)
		if err != nil {
			return config.ExecutionConfiguration{}, nil, err
		}
		b.Browser(browser)
	} else if modeName == "" {
		modeName = config.ModeMobile.String()
	}
	mode, err := config.ParseMode(modeName)
	if err != nil {
		return config.ExecutionConfiguration{}, nil, err
	}
	b.Mode(mode)

	endpoint := c.String("endpoint")
	if endpoint == "" {
		switch mode {
		case config.ModeGrid:
			endpoint = s.GridURL
		case config.ModeMobile:
			endpoint = s.Mobile.AppiumURL
		}
	}
	b.Endpoint(endpoint)

	if platform != config.PlatformDesktop {
		if err := applyMobileFlags(c, s, b, platform); err != nil {
			return config.ExecutionConfiguration{}, nil, err
		}
	}

	cfg, err := b.Build()
	return cfg, s, err
}

func applyMobileFlags(c *cli.Context, s *config.Settings, b *config.Builder, platform config.Platform) error {
	mos := config.MobileOSUnknown
	if name := c.String("os"); name != "" {
		var err error
		if mos, err = config.ParseMobileOS(name); err != nil {
			return err
		}
	}
	b.MobileOS(mos)
	b.DeviceName(firstNonEmpty(c.String("device"), s.Mobile.Device))
	b.OSVersion(firstNonEmpty(c.String("os-version"), s.Mobile.OSVersion))

	if platform != config.PlatformMobileNative {
		return nil
	}
	b.InstallApp(s.Mobile.InstallApp).ResetApp(s.Mobile.ResetApp)
	switch mos {
	case config.MobileOSAndroid:
		b.AppPath(s.Mobile.Android.AppPath).
			AppPackage(s.Mobile.Android.Package).
			AppActivity(s.Mobile.Android.Activity)
	case config.MobileOSIOS:
		b.AppPath(s.Mobile.IOS.AppPath).BundleID(s.Mobile.IOS.BundleID)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func retryPolicy(c *cli.Context) session.RetryPolicy {
	p := session.DefaultRetryPolicy
	p.MaxAttempts = c.Int("retries")
	return p
}

// withSession opens a session for the flag-selected target, runs fn against a
// page bound to it and releases the session.
func withSession(c *cli.Context, rec report.Recorder, fn func(ctx context.Context, p *page.Base) error) error {
	cfg, s, err := configFromFlags(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, err := executor.Provision(ctx, session.NewFactory(s), cfg, retryPolicy(c))
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Release(context.Background()); err != nil {
			logger.Warn("release %s: %v", sess.ID(), err)
		}
	}()

	return fn(ctx, page.New(sess, rec, c.Duration("timeout")))
}

func brokenError(results []linkcheck.Result) error {
	broken := 0
	for _, r := range results {
		if r.Broken() {
			broken++
		}
	}
	if broken > 0 {
		return fmt.Errorf("%d of %d URLs broken", broken, len(results))
	}
	return nil
}

func providerConfigs(c *cli.Context, name string) ([]config.ExecutionConfiguration, error) {
	provider, err := config.Lookup(name)
	if err != nil {
		return nil, err
	}
	s, err := loadSettings(c)
	if err != nil {
		return nil, err
	}
	return provider(s, "CLI", name)
}

func runProvider(c *cli.Context) error {
	url := c.Args().First()
	if url == "" {
		return fmt.Errorf("url is required")
	}
	outputDir, err := resolveOutputDir(c.String("output"), c.Bool("flatten"))
	if err != nil {
		return err
	}
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	cfgs, err := providerConfigs(c, c.String("provider"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timeout := c.Duration("timeout")
	runner := executor.NewParallelRunner(executor.RunnerConfig{
		Opener:      session.NewFactory(s),
		Retry:       retryPolicy(c),
		Parallelism: c.Int("parallel"),
		OutputDir:   outputDir,
		Recorder:    report.NewConsole(c.App.Writer),
	})
	result, err := runner.Run(ctx, cfgs, func(ctx context.Context, sess *session.Session, rec report.Recorder) error {
		p := page.New(sess, rec, timeout)
		if err := p.Open(ctx, url); err != nil {
			return err
		}
		title, err := sess.Title(ctx)
		if err != nil {
			return err
		}
		rec.Record("Title", title, report.Info)
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "\n%d passed, %d failed, %d errored in %s\nReport: %s\n",
		result.Passed, result.Failed, result.Errored,
		time.Duration(result.Duration)*time.Millisecond,
		filepath.Join(outputDir, "report.json"))
	if !result.Success() {
		return fmt.Errorf("run %s failed", result.RunID)
	}
	return nil
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: <home>/reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = config.GetReportsDir()
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}
