// Package capabilities translates an execution configuration into the
// capability set negotiated with an automation endpoint.
//
// Build is pure: it reads only the configuration it is given, and identical
// input always yields an identical Set.
package capabilities

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/devicelab-dev/uiharness/pkg/config"
	"github.com/devicelab-dev/uiharness/pkg/core"
)

// Capability names. Mobile names are the unprefixed Appium spellings; the
// session factory adds the "appium:" vendor prefix on the wire.
const (
	PlatformName    = "platformName"
	BrowserName     = "browserName"
	AutomationName  = "automationName"
	DeviceName      = "deviceName"
	UDID            = "udid"
	PlatformVersion = "platformVersion"
	AppPackage      = "appPackage"
	AppActivity     = "appActivity"
	BundleID        = "bundleId"
	App             = "app"
	NoReset         = "noReset"

	// Launch-profile flags for desktop browsers. They never reach the wire
	// as-is; the factory turns them into browser options.
	Headless = "harness:headless"
	Grid     = "harness:grid"
)

// Set maps capability names to string or bool values.
type Set map[string]interface{}

// String returns the string value for key, or "".
func (s Set) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Bool returns the bool value for key, or false.
func (s Set) Bool(key string) bool {
	v, _ := s[key].(bool)
	return v
}

// Has reports whether key is present.
func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the capability names in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Encode renders the set as key-sorted JSON. Equal sets encode to identical bytes.
func (s Set) Encode() ([]byte, error) {
	return json.Marshal(map[string]interface{}(s))
}

// Validate checks that every value is a string or bool.
func (s Set) Validate() error {
	for _, k := range s.Keys() {
		switch s[k].(type) {
		case string, bool:
		default:
			return core.ConfigError("capability %q has unsupported value type %T", k, s[k])
		}
	}
	return nil
}

// Build produces the capability set for cfg. Inconsistent combinations fail
// with core.ErrInvalidConfig; enum values with no case here fail with
// core.ErrUnsupportedConfig.
func Build(cfg config.ExecutionConfiguration) (Set, error) {
	switch cfg.Platform() {
	case config.PlatformDesktop:
		return buildDesktop(cfg)
	case config.PlatformMobileNative:
		return buildNative(cfg)
	case config.PlatformMobileWeb:
		return buildMobileWeb(cfg)
	case config.PlatformUnknown:
		return nil, core.ConfigError("platform is required")
	default:
		return nil, core.UnsupportedError("platform %d", int(cfg.Platform()))
	}
}

func buildDesktop(cfg config.ExecutionConfiguration) (Set, error) {
	if cfg.MobileOS() != config.MobileOSUnknown || cfg.DeviceName() != "" {
		return nil, core.ConfigError("mobile fields set for platform %s", cfg.Platform())
	}

	family := cfg.Browser().Family()
	if family == "" {
		if cfg.Browser() == config.BrowserUnknown {
			return nil, core.ConfigError("browser is required for platform %s", cfg.Platform())
		}
		return nil, core.UnsupportedError("browser %d", int(cfg.Browser()))
	}

	caps := Set{BrowserName: family}
	if cfg.Browser().Headless() {
		caps[Headless] = true
	}

	switch cfg.Mode() {
	case config.ModeLocal:
	case config.ModeGrid:
		caps[Grid] = true
	case config.ModeMobile, config.ModeUnknown:
		return nil, core.ConfigError("mode %s is not valid for platform %s", cfg.Mode(), cfg.Platform())
	default:
		return nil, core.UnsupportedError("mode %d", int(cfg.Mode()))
	}
	return caps, nil
}

// deviceIdentity returns the fields every mobile target needs.
func deviceIdentity(cfg config.ExecutionConfiguration, platformName string) (Set, error) {
	if cfg.Browser() != config.BrowserUnknown {
		return nil, core.ConfigError("browser %s set for platform %s", cfg.Browser(), cfg.Platform())
	}
	if cfg.DeviceName() == "" {
		return nil, core.ErrMissingRequired.WithMessage("invalid configuration: device name is required")
	}
	if cfg.OSVersion() == "" {
		return nil, core.ErrMissingRequired.WithMessage("invalid configuration: OS version is required")
	}
	return Set{
		PlatformName:    platformName,
		DeviceName:      cfg.DeviceName(),
		UDID:            cfg.DeviceName(),
		PlatformVersion: cfg.OSVersion(),
	}, nil
}

func buildNative(cfg config.ExecutionConfiguration) (Set, error) {
	var (
		caps Set
		err  error
	)

	switch cfg.MobileOS() {
	case config.MobileOSAndroid:
		if cfg.AppPackage() == "" || cfg.AppActivity() == "" {
			return nil, core.ErrMissingRequired.WithMessage("invalid configuration: Android native requires app package and activity")
		}
		if caps, err = deviceIdentity(cfg, "Android"); err != nil {
			return nil, err
		}
		caps[AutomationName] = "UiAutomator2"
		caps[AppPackage] = cfg.AppPackage()
		caps[AppActivity] = cfg.AppActivity()
	case config.MobileOSIOS:
		if cfg.BundleID() == "" {
			return nil, core.ErrMissingRequired.WithMessage("invalid configuration: iOS native requires a bundle id")
		}
		if caps, err = deviceIdentity(cfg, "iOS"); err != nil {
			return nil, err
		}
		caps[AutomationName] = "XCUITest"
		caps[BundleID] = cfg.BundleID()
	case config.MobileOSUnknown:
		return nil, core.ConfigError("mobile OS is required for platform %s", cfg.Platform())
	default:
		return nil, core.UnsupportedError("mobile OS %d", int(cfg.MobileOS()))
	}

	if cfg.InstallApp() {
		if cfg.AppPath() == "" {
			return nil, core.ErrMissingRequired.WithMessage("invalid configuration: installApp requires an app path")
		}
		caps[App] = cfg.AppPath()
	}
	if !cfg.ResetApp() {
		caps[NoReset] = "true"
	}
	return caps, nil
}

func buildMobileWeb(cfg config.ExecutionConfiguration) (Set, error) {
	if cfg.InstallApp() {
		return nil, core.ConfigError("app installation is not valid for platform %s", cfg.Platform())
	}

	switch cfg.MobileOS() {
	case config.MobileOSAndroid:
		caps, err := deviceIdentity(cfg, "Android")
		if err != nil {
			return nil, err
		}
		caps[BrowserName] = "Chrome"
		return caps, nil
	case config.MobileOSIOS:
		caps, err := deviceIdentity(cfg, "iOS")
		if err != nil {
			return nil, err
		}
		caps[AutomationName] = "XCUITest"
		caps[BrowserName] = "Safari"
		return caps, nil
	case config.MobileOSUnknown:
		return nil, core.ConfigError("mobile OS is required for platform %s", cfg.Platform())
	default:
		return nil, core.UnsupportedError("mobile OS %d", int(cfg.MobileOS()))
	}
}

// Describe renders the set as "key=value" pairs in key order, for logs.
func (s Set) Describe() string {
	out := ""
	for i, k := range s.Keys() {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%v", k, s[k])
	}
	return out
}
