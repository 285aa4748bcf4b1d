package cli

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devicelab-dev/uiharness/pkg/core"
	"github.com/devicelab-dev/uiharness/pkg/webdriver/webdrivertest"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"uiharness"}, args...))
	return out.String(), err
}

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harness.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveOutputDir_CustomOutput(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(dir, "my-reports/") {
		t.Errorf("expected dir to start with my-reports/, got %s", dir)
	}
}

func TestResolveOutputDir_Flatten(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != "my-reports" {
		t.Errorf("expected my-reports, got %s", dir)
	}
}

func TestResolveOutputDir_FlattenWithoutOutput(t *testing.T) {
	_, err := resolveOutputDir("", true)
	if err == nil || !strings.Contains(err.Error(), "--flatten requires --output") {
		t.Errorf("expected error about --flatten requiring --output, got: %v", err)
	}
}

func TestCapsCommand_GridChrome(t *testing.T) {
	out, err := runApp(t, "--mode", "GRID", "--browser", "CHROME_HEADLESS",
		"--endpoint", "http://grid.test:4444/wd/hub", "caps")
	if err != nil {
		t.Fatalf("caps failed: %v", err)
	}
	for _, want := range []string{`"browserName":"chrome"`, `"harness:grid":true`, `"harness:headless":true`, "DESKTOP GRID"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
}

func TestCapsCommand_NativeAndroidFromSettings(t *testing.T) {
	settings := writeSettings(t, `
mobile:
  defaultDevice: Pixel_7
  osVersion: "14"
  android:
    package: com.shop.app
    activity: .MainActivity
`)
	out, err := runApp(t, "--settings", settings, "--platform", "MOBILE_NATIVE", "--os", "ANDROID", "caps")
	if err != nil {
		t.Fatalf("caps failed: %v", err)
	}
	for _, want := range []string{`"deviceName":"Pixel_7"`, `"appPackage":"com.shop.app"`, `"platformName":"Android"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
}

func TestCapsCommand_InvalidConfig(t *testing.T) {
	_, err := runApp(t, "--platform", "MOBILE_WEB", "--os", "ANDROID", "caps")
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig without a device, got %v", err)
	}

	for _, flag := range [][]string{{"--browser", "OPERA"}, {"--platform", "TV"}, {"--mode", "CLOUD"}} {
		if _, err := runApp(t, append(flag, "caps")...); !errors.Is(err, core.ErrInvalidConfig) {
			t.Errorf("%v: expected ErrInvalidConfig, got %v", flag, err)
		}
	}
	if _, err := runApp(t, "--settings", filepath.Join(t.TempDir(), "missing.yaml"), "caps"); err == nil {
		t.Error("Expected error for a missing settings file")
	}
}

func TestOpenCommand(t *testing.T) {
	srv := webdrivertest.NewServer()
	defer srv.Close()
	srv.SetSource("Shop", "<html></html>")

	out, err := runApp(t, "--mode", "GRID", "--endpoint", srv.URL, "open", "--timeout", "1s", "https://shop.test/")
	if err != nil {
		t.Fatalf("open failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Shop") {
		t.Errorf("Expected title in output:\n%s", out)
	}
	if len(srv.Deleted()) != 1 {
		t.Error("Session should be released")
	}

	if _, err := runApp(t, "--mode", "GRID", "--endpoint", srv.URL, "open"); err == nil {
		t.Error("Expected error without a url")
	}
}

func TestOpenCommand_SessionRefused(t *testing.T) {
	_, err := runApp(t, "--mode", "GRID", "--endpoint", "http://127.0.0.1:1/wd/hub", "open", "https://shop.test/")
	if !errors.Is(err, core.ErrSessionCreation) {
		t.Errorf("Expected ErrSessionCreation, got %v", err)
	}
}

func TestLinksCommand(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer site.Close()

	srv := webdrivertest.NewServer()
	defer srv.Close()
	srv.SetSource("Home", `<a href="/ok">ok</a><a href="/gone">gone</a><img src="/logo.png">`)

	out, err := runApp(t, "--mode", "GRID", "--endpoint", srv.URL, "links", "--images", site.URL+"/")
	if err == nil || !strings.Contains(err.Error(), "1 of 3 URLs broken") {
		t.Errorf("Expected one broken URL, got %v", err)
	}
	if !strings.Contains(out, "/gone - 404 - BROKEN") {
		t.Errorf("Expected broken link in output:\n%s", out)
	}
}

func TestProvidersCommand(t *testing.T) {
	out, err := runApp(t, "providers")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ChromeParallel") || !strings.Contains(out, "NativeIOS") {
		t.Errorf("Expected provider names:\n%s", out)
	}

	out, err = runApp(t, "providers", "ChromeParallel")
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(out, "CLI/ChromeParallel/Instance"); n != 3 {
		t.Errorf("Expected 3 configurations, got %d:\n%s", n, out)
	}

	if _, err := runApp(t, "providers", "Nope"); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestRunCommand(t *testing.T) {
	srv := webdrivertest.NewServer()
	defer srv.Close()
	srv.SetSource("Shop", "<html></html>")

	settings := writeSettings(t, fmt.Sprintf("gridURL: %s\n", srv.URL))
	output := t.TempDir()

	out, err := runApp(t, "--settings", settings, "run", "--provider", "ChromeRemote",
		"--output", output, "--flatten", "https://shop.test/")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 passed, 0 failed, 0 errored") {
		t.Errorf("Unexpected summary:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(output, "report.json")); err != nil {
		t.Errorf("report.json missing: %v", err)
	}
}

func TestVerboseWithLogFile(t *testing.T) {
	srv := webdrivertest.NewServer()
	defer srv.Close()
	logPath := filepath.Join(t.TempDir(), "harness.log")

	out, err := runApp(t, "--verbose", "--log-file", logPath,
		"--mode", "GRID", "--endpoint", srv.URL, "open", "https://shop.test/")
	if err != nil {
		t.Fatalf("open failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "capabilities:") {
		t.Errorf("Expected debug output on the verbose writer:\n%s", out)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "capabilities:") {
		t.Errorf("Expected debug output in the log file:\n%s", data)
	}
}
