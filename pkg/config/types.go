package config

import (
	"strings"

	"github.com/devicelab-dev/uiharness/pkg/core"
)

// Platform is the kind of UI under test.
type Platform int

const (
	PlatformUnknown Platform = iota
	PlatformDesktop          // Desktop browser
	PlatformMobileNative     // Native app on a device or emulator
	PlatformMobileWeb        // Mobile browser on a device or emulator
)

// String returns the configuration-file spelling of the platform.
func (p Platform) String() string {
	switch p {
	case PlatformDesktop:
		return "DESKTOP"
	case PlatformMobileNative:
		return "MOBILE_NATIVE"
	case PlatformMobileWeb:
		return "MOBILE_WEB"
	default:
		return "UNKNOWN"
	}
}

// IsMobile returns true for the Appium-backed platforms.
func (p Platform) IsMobile() bool {
	return p == PlatformMobileNative || p == PlatformMobileWeb
}

// Mode is where the automation server runs.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeLocal        // Driver process launched on this machine
	ModeGrid         // Remote Selenium grid
	ModeMobile       // Remote Appium server
)

// String returns the configuration-file spelling of the mode.
func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "LOCAL"
	case ModeGrid:
		return "GRID"
	case ModeMobile:
		return "MOBILE"
	default:
		return "UNKNOWN"
	}
}

// Browser is the desktop browser kind.
type Browser int

const (
	BrowserUnknown Browser = iota
	BrowserChrome
	BrowserChromeHeadless
	BrowserFirefox
	BrowserFirefoxHeadless
)

// String returns the configuration-file spelling of the browser.
func (b Browser) String() string {
	switch b {
	case BrowserChrome:
		return "CHROME"
	case BrowserChromeHeadless:
		return "CHROME_HEADLESS"
	case BrowserFirefox:
		return "FIREFOX"
	case BrowserFirefoxHeadless:
		return "FIREFOX_HEADLESS"
	default:
		return "UNKNOWN"
	}
}

// Headless reports whether the browser runs without a window.
func (b Browser) Headless() bool {
	return b == BrowserChromeHeadless || b == BrowserFirefoxHeadless
}

// Family returns the W3C browserName for the browser kind.
func (b Browser) Family() string {
	switch b {
	case BrowserChrome, BrowserChromeHeadless:
		return "chrome"
	case BrowserFirefox, BrowserFirefoxHeadless:
		return "firefox"
	default:
		return ""
	}
}

// MobileOS is the operating system of a mobile target.
type MobileOS int

const (
	MobileOSUnknown MobileOS = iota
	MobileOSAndroid
	MobileOSIOS
)

// String returns the configuration-file spelling of the OS.
func (o MobileOS) String() string {
	switch o {
	case MobileOSAndroid:
		return "ANDROID"
	case MobileOSIOS:
		return "IOS"
	default:
		return "UNKNOWN"
	}
}

func normalize(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
}

// ParsePlatform parses DESKTOP, MOBILE_NATIVE or MOBILE_WEB (case-insensitive).
func ParsePlatform(s string) (Platform, error) {
	switch normalize(s) {
	case "DESKTOP", "WEB":
		return PlatformDesktop, nil
	case "MOBILE_NATIVE", "NATIVE":
		return PlatformMobileNative, nil
	case "MOBILE_WEB":
		return PlatformMobileWeb, nil
	}
	return PlatformUnknown, core.ConfigError("unknown platform %q", s)
}

// ParseMode parses LOCAL, GRID or MOBILE (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch normalize(s) {
	case "LOCAL":
		return ModeLocal, nil
	case "GRID", "REMOTE":
		return ModeGrid, nil
	case "MOBILE", "APPIUM":
		return ModeMobile, nil
	}
	return ModeUnknown, core.ConfigError("unknown execution mode %q", s)
}

// ParseBrowser parses a browser kind such as CHROME_HEADLESS (case-insensitive).
func ParseBrowser(s string) (Browser, error) {
	switch normalize(s) {
	case "CHROME":
		return BrowserChrome, nil
	case "CHROME_HEADLESS":
		return BrowserChromeHeadless, nil
	case "FIREFOX":
		return BrowserFirefox, nil
	case "FIREFOX_HEADLESS":
		return BrowserFirefoxHeadless, nil
	}
	return BrowserUnknown, core.ConfigError("unknown browser %q", s)
}

// ParseMobileOS parses ANDROID or IOS (case-insensitive).
func ParseMobileOS(s string) (MobileOS, error) {
	switch normalize(s) {
	case "ANDROID":
		return MobileOSAndroid, nil
	case "IOS":
		return MobileOSIOS, nil
	}
	return MobileOSUnknown, core.ConfigError("unknown mobile OS %q", s)
}
