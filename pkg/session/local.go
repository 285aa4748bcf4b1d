package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/tebeka/selenium"

	"github.com/devicelab-dev/uiharness/pkg/core"
	"github.com/devicelab-dev/uiharness/pkg/logger"
)

// Launcher starts a local browser driver process and returns its endpoint and
// a function that stops it.
type Launcher interface {
	Launch(ctx context.Context, browser string) (endpoint string, stop func() error, err error)
}

// ServiceLauncher runs chromedriver or geckodriver on a free local port.
type ServiceLauncher struct {
	// DriverPath maps a browser family to its driver binary.
	DriverPath func(family string) string

	// Output receives the driver's stdout/stderr. Defaults to the log file.
	Output io.Writer
}

// urlPrefix is the base path each driver serves WebDriver under.
var urlPrefix = map[string]string{
	"chrome":  "/wd/hub",
	"firefox": "",
}

// Launch implements Launcher.
func (l *ServiceLauncher) Launch(ctx context.Context, browser string) (string, func() error, error) {
	prefix, ok := urlPrefix[browser]
	if !ok {
		return "", nil, core.UnsupportedError("no local driver for browser %q", browser)
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	path := l.DriverPath(browser)
	if _, err := os.Stat(path); err != nil {
		return "", nil, fmt.Errorf("%s driver not found at %s: %w", browser, path, err)
	}

	port, err := freePort()
	if err != nil {
		return "", nil, fmt.Errorf("allocate port: %w", err)
	}

	out := l.Output
	if out == nil {
		out = logger.GetWriter()
	}
	opts := []selenium.ServiceOption{selenium.Output(out)}

	var svc *selenium.Service
	switch browser {
	case "chrome":
		svc, err = selenium.NewChromeDriverService(path, port, opts...)
	case "firefox":
		svc, err = selenium.NewGeckoDriverService(path, port, opts...)
	}
	if err != nil {
		return "", nil, fmt.Errorf("start %s: %w", path, err)
	}

	logger.Info("started %s on port %d", path, port)
	return fmt.Sprintf("http://127.0.0.1:%d%s", port, prefix), svc.Stop, nil
}

// freePort asks the kernel for an unused TCP port.
func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}
