// Package config holds the execution configuration model, the harness.yaml
// settings file and the data providers that enumerate test invocations.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings represents the harness settings file (harness.yaml). Values here
// are defaults that data providers copy into ExecutionConfigurations.
type Settings struct {
	// Desktop execution
	DefaultExecutionMode string `yaml:"defaultExecutionMode"` // LOCAL or GRID
	DefaultBrowser       string `yaml:"defaultBrowser"`       // CHROME, CHROME_HEADLESS, ...
	GridURL              string `yaml:"gridURL"`
	ApplicationURL       string `yaml:"applicationURL"`

	// Local driver binaries (chromedriver, geckodriver). Empty means look under
	// <home>/drivers/<browser>.
	Drivers map[string]string `yaml:"drivers"`

	Mobile MobileSettings `yaml:"mobile"`
}

// MobileSettings are the Appium defaults.
type MobileSettings struct {
	AppiumURL  string `yaml:"appiumURL"`
	Device     string `yaml:"defaultDevice"`
	OSVersion  string `yaml:"osVersion"`
	InstallApp bool   `yaml:"installApp"`
	ResetApp   bool   `yaml:"resetApp"`

	Android AndroidApp `yaml:"android"`
	IOS     IOSApp     `yaml:"ios"`
}

// AndroidApp identifies the Android application under test.
type AndroidApp struct {
	AppPath  string `yaml:"appPath"`
	Package  string `yaml:"package"`
	Activity string `yaml:"activity"`
}

// IOSApp identifies the iOS application under test.
type IOSApp struct {
	AppPath  string `yaml:"appPath"`
	BundleID string `yaml:"bundleId"`
}

// Default values applied by Load for unset fields.
const (
	DefaultGridURL   = "http://localhost:4444/wd/hub"
	DefaultAppiumURL = "http://127.0.0.1:4723"
)

// Load loads settings from a file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided settings file
	if err != nil {
		return nil, err
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	s.applyDefaults()

	return &s, nil
}

// LoadFromDir looks for harness.yaml or harness.yml in the directory.
func LoadFromDir(dir string) (*Settings, error) {
	for _, name := range []string{"harness.yaml", "harness.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	// No settings file found, return defaults
	s := &Settings{}
	s.applyDefaults()
	return s, nil
}

func (s *Settings) applyDefaults() {
	if s.DefaultExecutionMode == "" {
		s.DefaultExecutionMode = ModeLocal.String()
	}
	if s.DefaultBrowser == "" {
		s.DefaultBrowser = BrowserChrome.String()
	}
	if s.GridURL == "" {
		s.GridURL = DefaultGridURL
	}
	if s.Mobile.AppiumURL == "" {
		s.Mobile.AppiumURL = DefaultAppiumURL
	}
}

// DriverPath returns the configured driver binary for a browser family
// ("chrome", "firefox"), falling back to the home drivers directory.
func (s *Settings) DriverPath(family string) string {
	if p := s.Drivers[family]; p != "" {
		return p
	}
	bin := map[string]string{"chrome": "chromedriver", "firefox": "geckodriver"}[family]
	if bin == "" {
		bin = family
	}
	return filepath.Join(GetDriversDir(family), bin)
}
