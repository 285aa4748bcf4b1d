package config

import (
	"fmt"
	"sort"
)

// Provider enumerates the execution configurations for one test case.
// Providers read defaults from Settings; the configurations they return are
// already validated.
type Provider func(s *Settings, scenario, testCase string) ([]ExecutionConfiguration, error)

// Providers are the named data providers available to test suites.
var Providers = map[string]Provider{
	"Config":         configDefault,
	"ChromeBrowser":  chromeBrowser,
	"ChromeHeadless": chromeHeadless,
	"ChromeRemote":   chromeRemote,
	"ChromeParallel": chromeParallel,
	"WebAndroid":     webAndroid,
	"NativeAndroid":  nativeAndroid,
	"NativeIOS":      nativeIOS,
}

// Lookup returns the provider registered under name.
func Lookup(name string) (Provider, error) {
	p, ok := Providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown data provider %q", name)
	}
	return p, nil
}

// ProviderNames returns the registered provider names in sorted order.
func ProviderNames() []string {
	names := make([]string, 0, len(Providers))
	for name := range Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func single(b *Builder) ([]ExecutionConfiguration, error) {
	cfg, err := b.Build()
	if err != nil {
		return nil, err
	}
	return []ExecutionConfiguration{cfg}, nil
}

// configDefault follows the settings file: GRID or LOCAL, and the default
// browser.
func configDefault(s *Settings, scenario, testCase string) ([]ExecutionConfiguration, error) {
	mode, err := ParseMode(s.DefaultExecutionMode)
	if err != nil || mode != ModeGrid {
		mode = ModeLocal
	}
	browser, err := ParseBrowser(s.DefaultBrowser)
	if err != nil {
		browser = BrowserChrome
	}

	b := NewBuilder(scenario, testCase).Platform(PlatformDesktop).Mode(mode).Browser(browser)
	if mode == ModeGrid {
		b.Endpoint(s.GridURL)
	}
	return single(b)
}

func chromeBrowser(_ *Settings, scenario, testCase string) ([]ExecutionConfiguration, error) {
	return single(NewBuilder(scenario, testCase).
		Platform(PlatformDesktop).Mode(ModeLocal).Browser(BrowserChrome))
}

func chromeHeadless(_ *Settings, scenario, testCase string) ([]ExecutionConfiguration, error) {
	return single(NewBuilder(scenario, testCase).
		Platform(PlatformDesktop).Mode(ModeLocal).Browser(BrowserChromeHeadless))
}

func chromeRemote(s *Settings, scenario, testCase string) ([]ExecutionConfiguration, error) {
	return single(NewBuilder(scenario, testCase).
		Platform(PlatformDesktop).Mode(ModeGrid).Browser(BrowserChromeHeadless).Endpoint(s.GridURL))
}

// chromeParallel returns three local Chrome instances of the same test, each
// of which gets its own session.
func chromeParallel(_ *Settings, scenario, testCase string) ([]ExecutionConfiguration, error) {
	var out []ExecutionConfiguration
	for i := 1; i <= 3; i++ {
		cfg, err := NewBuilder(scenario, testCase).
			Instance(fmt.Sprintf("Instance%d", i)).
			Platform(PlatformDesktop).Mode(ModeLocal).Browser(BrowserChrome).
			Build()
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

func mobileBuilder(s *Settings, scenario, testCase string, p Platform, mos MobileOS) *Builder {
	return NewBuilder(scenario, testCase).
		Platform(p).Mode(ModeMobile).MobileOS(mos).
		DeviceName(s.Mobile.Device).
		OSVersion(s.Mobile.OSVersion).
		Endpoint(s.Mobile.AppiumURL)
}

func webAndroid(s *Settings, scenario, testCase string) ([]ExecutionConfiguration, error) {
	return single(mobileBuilder(s, scenario, testCase, PlatformMobileWeb, MobileOSAndroid))
}

func nativeAndroid(s *Settings, scenario, testCase string) ([]ExecutionConfiguration, error) {
	return single(mobileBuilder(s, scenario, testCase, PlatformMobileNative, MobileOSAndroid).
		InstallApp(s.Mobile.InstallApp).
		ResetApp(s.Mobile.ResetApp).
		AppPath(s.Mobile.Android.AppPath).
		AppPackage(s.Mobile.Android.Package).
		AppActivity(s.Mobile.Android.Activity))
}

func nativeIOS(s *Settings, scenario, testCase string) ([]ExecutionConfiguration, error) {
	return single(mobileBuilder(s, scenario, testCase, PlatformMobileNative, MobileOSIOS).
		InstallApp(s.Mobile.InstallApp).
		ResetApp(s.Mobile.ResetApp).
		AppPath(s.Mobile.IOS.AppPath).
		BundleID(s.Mobile.IOS.BundleID))
}
