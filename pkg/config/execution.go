package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/devicelab-dev/uiharness/pkg/core"
)

// DefaultInstance is the instance name used when the provider does not set one.
const DefaultInstance = "Instance1"

// ExecutionConfiguration describes one test invocation's target. It is
// immutable once built; use Builder to create one.
type ExecutionConfiguration struct {
	scenario string
	testCase string
	instance string

	platform Platform
	mode     Mode
	browser  Browser
	mobileOS MobileOS

	deviceName string
	osVersion  string
	endpoint   string

	installApp bool
	resetApp   bool

	appPath     string
	appPackage  string
	appActivity string
	bundleID    string
}

func (c ExecutionConfiguration) Scenario() string    { return c.scenario }
func (c ExecutionConfiguration) TestCase() string    { return c.testCase }
func (c ExecutionConfiguration) Instance() string    { return c.instance }
func (c ExecutionConfiguration) Platform() Platform  { return c.platform }
func (c ExecutionConfiguration) Mode() Mode          { return c.mode }
func (c ExecutionConfiguration) Browser() Browser    { return c.browser }
func (c ExecutionConfiguration) MobileOS() MobileOS  { return c.mobileOS }
func (c ExecutionConfiguration) DeviceName() string  { return c.deviceName }
func (c ExecutionConfiguration) OSVersion() string   { return c.osVersion }
func (c ExecutionConfiguration) Endpoint() string    { return c.endpoint }
func (c ExecutionConfiguration) InstallApp() bool    { return c.installApp }
func (c ExecutionConfiguration) ResetApp() bool      { return c.resetApp }
func (c ExecutionConfiguration) AppPath() string     { return c.appPath }
func (c ExecutionConfiguration) AppPackage() string  { return c.appPackage }
func (c ExecutionConfiguration) AppActivity() string { return c.appActivity }
func (c ExecutionConfiguration) BundleID() string    { return c.bundleID }

// Name identifies the test invocation, e.g. "Login/TC01/Instance1".
func (c ExecutionConfiguration) Name() string {
	return c.scenario + "/" + c.testCase + "/" + c.instance
}

// String describes the invocation and its target for logs and reports.
func (c ExecutionConfiguration) String() string {
	target := []string{c.platform.String(), c.mode.String()}
	if c.platform == PlatformDesktop {
		target = append(target, c.browser.String())
	} else {
		target = append(target, c.mobileOS.String(), c.deviceName)
	}
	return fmt.Sprintf("%s [%s]", c.Name(), strings.Join(target, " "))
}

// Builder constructs an ExecutionConfiguration fluently and validates the
// combination in Build.
type Builder struct {
	cfg ExecutionConfiguration
}

// NewBuilder starts a configuration for the given scenario and test case.
func NewBuilder(scenario, testCase string) *Builder {
	return &Builder{cfg: ExecutionConfiguration{
		scenario: scenario,
		testCase: testCase,
		instance: DefaultInstance,
	}}
}

func (b *Builder) Instance(name string) *Builder     { b.cfg.instance = name; return b }
func (b *Builder) Platform(p Platform) *Builder      { b.cfg.platform = p; return b }
func (b *Builder) Mode(m Mode) *Builder              { b.cfg.mode = m; return b }
func (b *Builder) Browser(k Browser) *Builder        { b.cfg.browser = k; return b }
func (b *Builder) MobileOS(o MobileOS) *Builder      { b.cfg.mobileOS = o; return b }
func (b *Builder) DeviceName(name string) *Builder   { b.cfg.deviceName = name; return b }
func (b *Builder) OSVersion(v string) *Builder       { b.cfg.osVersion = v; return b }
func (b *Builder) Endpoint(u string) *Builder        { b.cfg.endpoint = u; return b }
func (b *Builder) InstallApp(install bool) *Builder  { b.cfg.installApp = install; return b }
func (b *Builder) ResetApp(reset bool) *Builder      { b.cfg.resetApp = reset; return b }
func (b *Builder) AppPath(path string) *Builder      { b.cfg.appPath = path; return b }
func (b *Builder) AppPackage(pkg string) *Builder    { b.cfg.appPackage = pkg; return b }
func (b *Builder) AppActivity(act string) *Builder   { b.cfg.appActivity = act; return b }
func (b *Builder) BundleID(id string) *Builder       { b.cfg.bundleID = id; return b }

// Build validates the accumulated fields and returns the configuration.
// Every failure is a core.ErrInvalidConfig error.
func (b *Builder) Build() (ExecutionConfiguration, error) {
	cfg := b.cfg
	if cfg.instance == "" {
		cfg.instance = DefaultInstance
	}

	if cfg.endpoint != "" {
		if _, err := ParseEndpoint(cfg.endpoint); err != nil {
			return ExecutionConfiguration{}, err
		}
	}

	var err error
	switch cfg.platform {
	case PlatformDesktop:
		err = validateDesktop(cfg)
	case PlatformMobileNative, PlatformMobileWeb:
		err = validateMobile(cfg)
	default:
		err = core.ConfigError("platform is required")
	}
	if err != nil {
		return ExecutionConfiguration{}, err
	}
	return cfg, nil
}

func validateDesktop(cfg ExecutionConfiguration) error {
	switch cfg.mode {
	case ModeLocal:
	case ModeGrid:
		if cfg.endpoint == "" {
			return core.ConfigError("grid execution requires an endpoint")
		}
	case ModeUnknown:
		return core.ConfigError("execution mode is required")
	default:
		return core.ConfigError("mode %s is not valid for platform %s", cfg.mode, cfg.platform)
	}
	if cfg.browser == BrowserUnknown {
		return core.ConfigError("browser is required for platform %s", cfg.platform)
	}
	if cfg.mobileOS != MobileOSUnknown || cfg.deviceName != "" || cfg.osVersion != "" {
		return core.ConfigError("mobile device fields are not valid for platform %s", cfg.platform)
	}
	if cfg.installApp || cfg.resetApp || cfg.appPath != "" || cfg.appPackage != "" ||
		cfg.appActivity != "" || cfg.bundleID != "" {
		return core.ConfigError("app fields are not valid for platform %s", cfg.platform)
	}
	return nil
}

func validateMobile(cfg ExecutionConfiguration) error {
	if cfg.mode == ModeUnknown {
		return core.ConfigError("execution mode is required")
	}
	if cfg.mode != ModeMobile {
		return core.ConfigError("mode %s is not valid for platform %s", cfg.mode, cfg.platform)
	}
	if cfg.browser != BrowserUnknown {
		return core.ConfigError("browser %s is not valid for platform %s", cfg.browser, cfg.platform)
	}
	if cfg.mobileOS == MobileOSUnknown {
		return core.ConfigError("mobile OS is required for platform %s", cfg.platform)
	}
	if cfg.deviceName == "" {
		return core.ErrMissingRequired.WithMessage("invalid configuration: device name is required")
	}
	if cfg.osVersion == "" {
		return core.ErrMissingRequired.WithMessage("invalid configuration: OS version is required")
	}
	if cfg.endpoint == "" {
		return core.ErrMissingRequired.WithMessage("invalid configuration: Appium endpoint is required")
	}

	if cfg.platform == PlatformMobileWeb {
		if cfg.installApp || cfg.appPath != "" {
			return core.ConfigError("app installation is not valid for platform %s", cfg.platform)
		}
		return nil
	}

	switch cfg.mobileOS {
	case MobileOSAndroid:
		if cfg.appPackage == "" || cfg.appActivity == "" {
			return core.ErrMissingRequired.WithMessage("invalid configuration: Android native requires app package and activity")
		}
	case MobileOSIOS:
		if cfg.bundleID == "" {
			return core.ErrMissingRequired.WithMessage("invalid configuration: iOS native requires a bundle id")
		}
	}
	if cfg.installApp && cfg.appPath == "" {
		return core.ErrMissingRequired.WithMessage("invalid configuration: installApp requires an app path")
	}
	return nil
}

// ParseEndpoint validates an automation endpoint URL. It must be an absolute
// http or https URL with a host.
func ParseEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, core.ConfigError("malformed endpoint %q", raw).WithCause(err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, core.ConfigError("endpoint %q must use http or https", raw)
	}
	if u.Host == "" {
		return nil, core.ConfigError("endpoint %q has no host", raw)
	}
	return u, nil
}
