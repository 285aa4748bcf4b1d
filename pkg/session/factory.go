// Package session opens and wraps automation sessions against local browser
// drivers, Selenium grids and Appium servers.
package session

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"

	"github.com/devicelab-dev/uiharness/pkg/capabilities"
	"github.com/devicelab-dev/uiharness/pkg/config"
	"github.com/devicelab-dev/uiharness/pkg/core"
	"github.com/devicelab-dev/uiharness/pkg/logger"
	"github.com/devicelab-dev/uiharness/pkg/webdriver"
)

// appiumPrefix is the W3C vendor prefix for Appium capabilities.
const appiumPrefix = "appium:"

// Target says where a session should be opened.
type Target struct {
	Platform config.Platform
	Mode     config.Mode
	Endpoint string // grid or Appium URL; optional for LOCAL
}

// TargetFor returns the target described by an execution configuration.
func TargetFor(cfg config.ExecutionConfiguration) Target {
	return Target{Platform: cfg.Platform(), Mode: cfg.Mode(), Endpoint: cfg.Endpoint()}
}

func (t Target) String() string {
	if t.Endpoint == "" {
		return t.Platform.String() + "/" + t.Mode.String()
	}
	return t.Platform.String() + "/" + t.Mode.String() + "@" + t.Endpoint
}

// Opener opens sessions. Factory is the production implementation.
type Opener interface {
	Open(ctx context.Context, t Target, caps capabilities.Set) (*Session, error)
}

// Factory creates sessions. It holds no per-session state and may be shared
// between goroutines.
type Factory struct {
	// Launcher starts local browser drivers for DESKTOP/LOCAL targets
	// without an endpoint. Defaults to a ServiceLauncher.
	Launcher Launcher

	// HTTPClient is used for the WebDriver wire protocol. Defaults to the
	// client's own HTTP client.
	HTTPClient *http.Client
}

// NewFactory returns a factory that launches local drivers from the paths in s.
func NewFactory(s *config.Settings) *Factory {
	return &Factory{Launcher: &ServiceLauncher{DriverPath: s.DriverPath}}
}

// Open creates a session for t using caps. It fails with core.ErrUnsupportedConfig
// for platform/mode pairs it cannot serve, with core.ErrInvalidConfig for a bad
// endpoint or capability set (before any connection is made) and with
// core.ErrSessionCreation when the endpoint cannot be reached or refuses the
// handshake. It never retries and never returns a partial session.
func (f *Factory) Open(ctx context.Context, t Target, caps capabilities.Set) (*Session, error) {
	if !supported(t) {
		return nil, core.UnsupportedError("platform %s with mode %s", t.Platform, t.Mode)
	}

	needsEndpoint := t.Mode != config.ModeLocal
	if t.Endpoint == "" && needsEndpoint {
		return nil, core.ConfigError("mode %s requires an endpoint", t.Mode)
	}
	if t.Endpoint != "" {
		if _, err := config.ParseEndpoint(t.Endpoint); err != nil {
			return nil, err
		}
	}

	payload, err := wirePayload(t, caps)
	if err != nil {
		return nil, err
	}

	endpoint := t.Endpoint
	var stop func() error
	if endpoint == "" {
		endpoint, stop, err = f.launcher().Launch(ctx, caps.String(capabilities.BrowserName))
		if err != nil {
			return nil, core.SessionError(t.Platform.String(), err)
		}
	}

	client := webdriver.NewClient(endpoint)
	if f.HTTPClient != nil {
		client = webdriver.NewClientWithHTTP(endpoint, f.HTTPClient)
	}

	info, err := client.NewSession(ctx, payload)
	if err != nil {
		stopQuietly(stop)
		return nil, core.SessionError(t.Platform.String(), err)
	}

	// Lookups must fail fast; waiting is the poller's job.
	if err := client.SetImplicitWait(ctx, 0); err != nil {
		_ = client.DeleteSession(context.Background())
		stopQuietly(stop)
		return nil, core.SessionError(t.Platform.String(), err)
	}

	logger.WithFields(map[string]interface{}{
		"session":  info.ID,
		"platform": t.Platform.String(),
		"mode":     t.Mode.String(),
		"endpoint": endpoint,
	}).Info("session opened")

	return &Session{
		client:       client,
		platform:     t.Platform,
		capabilities: info.Capabilities,
		stop:         stop,
	}, nil
}

// Attach wraps an already running session. Releasing it deletes the remote session.
func Attach(endpoint, sessionID string, platform config.Platform) (*Session, error) {
	if _, err := config.ParseEndpoint(endpoint); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, core.ConfigError("session id is required")
	}

	client := webdriver.NewClient(endpoint)
	client.Attach(sessionID)
	return &Session{client: client, platform: platform}, nil
}

func (f *Factory) launcher() Launcher {
	if f.Launcher != nil {
		return f.Launcher
	}
	return &ServiceLauncher{DriverPath: (&config.Settings{}).DriverPath}
}

func supported(t Target) bool {
	switch t.Platform {
	case config.PlatformDesktop:
		return t.Mode == config.ModeLocal || t.Mode == config.ModeGrid
	case config.PlatformMobileNative, config.PlatformMobileWeb:
		return t.Mode == config.ModeMobile
	}
	return false
}

func stopQuietly(stop func() error) {
	if stop == nil {
		return
	}
	if err := stop(); err != nil {
		logger.Warn("failed to stop local driver: %v", err)
	}
}

// wirePayload translates a capability set into the W3C alwaysMatch object.
func wirePayload(t Target, caps capabilities.Set) (map[string]interface{}, error) {
	if len(caps) == 0 {
		return nil, core.ConfigError("capability set is empty")
	}
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	if t.Platform == config.PlatformDesktop {
		return desktopPayload(t, caps)
	}
	return mobilePayload(t, caps)
}

var mobileOnly = []string{
	capabilities.PlatformName, capabilities.DeviceName, capabilities.UDID,
	capabilities.PlatformVersion, capabilities.AutomationName, capabilities.App,
	capabilities.AppPackage, capabilities.AppActivity, capabilities.BundleID,
	capabilities.NoReset,
}

func desktopPayload(t Target, caps capabilities.Set) (map[string]interface{}, error) {
	for _, k := range mobileOnly {
		if caps.Has(k) {
			return nil, core.ConfigError("capability %q is not valid for a %s session", k, t.Platform)
		}
	}
	if caps.Bool(capabilities.Grid) != (t.Mode == config.ModeGrid) {
		return nil, core.ConfigError("capabilities do not match mode %s", t.Mode)
	}

	family := caps.String(capabilities.BrowserName)
	headless := caps.Bool(capabilities.Headless)

	sc := selenium.Capabilities{"browserName": family}
	switch family {
	case "chrome":
		var args []string
		if headless {
			args = append(args, "--headless=new", "--disable-gpu")
		}
		sc.AddChrome(chrome.Capabilities{Args: args, W3C: true})
		// W3C chromedriver rejects the legacy unprefixed key.
		delete(sc, "chromeOptions")
	case "firefox":
		if headless {
			sc.AddFirefox(firefox.Capabilities{Args: []string{"-headless"}})
		}
	case "":
		return nil, core.ConfigError("browserName is required for a %s session", t.Platform)
	default:
		return nil, core.UnsupportedError("browser %q", family)
	}

	for k, v := range caps {
		if strings.HasPrefix(k, "harness:") {
			continue
		}
		if _, ok := sc[k]; !ok {
			sc[k] = v
		}
	}
	return map[string]interface{}(sc), nil
}

func mobilePayload(t Target, caps capabilities.Set) (map[string]interface{}, error) {
	if caps.String(capabilities.PlatformName) == "" {
		return nil, core.ConfigError("platformName is required for a %s session", t.Platform)
	}
	switch t.Platform {
	case config.PlatformMobileWeb:
		if caps.String(capabilities.BrowserName) == "" {
			return nil, core.ConfigError("browserName is required for a %s session", t.Platform)
		}
	case config.PlatformMobileNative:
		if caps.Has(capabilities.BrowserName) {
			return nil, core.ConfigError("browserName is not valid for a %s session", t.Platform)
		}
		if caps.String(capabilities.AutomationName) == "" {
			return nil, core.ConfigError("automationName is required for a %s session", t.Platform)
		}
	}

	out := make(map[string]interface{}, len(caps))
	for k, v := range caps {
		switch {
		case strings.HasPrefix(k, "harness:"):
			return nil, core.ConfigError("capability %q is only valid for desktop sessions", k)
		case k == capabilities.PlatformName || k == capabilities.BrowserName:
			out[k] = v
		case k == capabilities.NoReset:
			b, err := toBool(v)
			if err != nil {
				return nil, core.ConfigError("capability %q: %v", k, err)
			}
			out[appiumPrefix+k] = b
		case strings.Contains(k, ":"):
			out[k] = v
		default:
			out[appiumPrefix+k] = v
		}
	}
	return out, nil
}

func toBool(v interface{}) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(t)
	}
	return false, strconv.ErrSyntax
}
