package config

import "testing"

func testSettings() *Settings {
	s := &Settings{
		Mobile: MobileSettings{
			Device:    "emu-1",
			OSVersion: "13",
			Android:   AndroidApp{Package: "com.example.demo", Activity: ".Main"},
			IOS:       IOSApp{BundleID: "com.example.Demo"},
		},
	}
	s.applyDefaults()
	return s
}

func TestProviders_AllBuild(t *testing.T) {
	s := testSettings()
	for _, name := range ProviderNames() {
		t.Run(name, func(t *testing.T) {
			p, err := Lookup(name)
			if err != nil {
				t.Fatal(err)
			}
			cfgs, err := p(s, "Login", "TC01")
			if err != nil {
				t.Fatalf("provider %s: %v", name, err)
			}
			if len(cfgs) == 0 {
				t.Fatal("provider returned no configurations")
			}
		})
	}
}

func TestProvider_ConfigFollowsSettings(t *testing.T) {
	s := testSettings()
	s.DefaultExecutionMode = "GRID"
	s.DefaultBrowser = "CHROME_HEADLESS"

	cfgs, err := Providers["Config"](s, "Login", "TC01")
	if err != nil {
		t.Fatal(err)
	}
	cfg := cfgs[0]
	if cfg.Mode() != ModeGrid || cfg.Browser() != BrowserChromeHeadless || cfg.Endpoint() != DefaultGridURL {
		t.Errorf("unexpected configuration: %s endpoint=%s", cfg, cfg.Endpoint())
	}
}

func TestProvider_ConfigUnknownValuesFallBack(t *testing.T) {
	s := testSettings()
	s.DefaultExecutionMode = "SOMEWHERE"
	s.DefaultBrowser = "LYNX"

	cfgs, err := Providers["Config"](s, "Login", "TC01")
	if err != nil {
		t.Fatal(err)
	}
	if cfgs[0].Mode() != ModeLocal || cfgs[0].Browser() != BrowserChrome {
		t.Errorf("expected LOCAL CHROME fallback, got %s", cfgs[0])
	}
}

func TestProvider_ChromeParallel(t *testing.T) {
	cfgs, err := Providers["ChromeParallel"](testSettings(), "Parallel", "TC02")
	if err != nil {
		t.Fatal(err)
	}
	if len(cfgs) != 3 {
		t.Fatalf("expected 3 instances, got %d", len(cfgs))
	}
	for i, cfg := range cfgs {
		want := []string{"Instance1", "Instance2", "Instance3"}[i]
		if cfg.Instance() != want {
			t.Errorf("instance %d = %s, want %s", i, cfg.Instance(), want)
		}
	}
}

func TestProvider_WebAndroid(t *testing.T) {
	cfgs, err := Providers["WebAndroid"](testSettings(), "Mobile", "TC03")
	if err != nil {
		t.Fatal(err)
	}
	cfg := cfgs[0]
	if cfg.Platform() != PlatformMobileWeb || cfg.MobileOS() != MobileOSAndroid || cfg.DeviceName() != "emu-1" {
		t.Errorf("unexpected configuration: %s", cfg)
	}
	if cfg.Endpoint() != DefaultAppiumURL {
		t.Errorf("Endpoint() = %s, want %s", cfg.Endpoint(), DefaultAppiumURL)
	}
}

func TestProvider_NativeAndroidMissingDevice(t *testing.T) {
	s := testSettings()
	s.Mobile.Device = ""
	if _, err := Providers["NativeAndroid"](s, "Mobile", "TC04"); err == nil {
		t.Error("expected configuration error without a device")
	}
}

func TestLookup_Unknown(t *testing.T) {
	if _, err := Lookup("Nope"); err == nil {
		t.Error("expected error for unknown provider")
	}
}
