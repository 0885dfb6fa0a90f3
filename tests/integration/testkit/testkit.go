package testkit

import (
	"fmt"
	"net"
	"testing"

	"github.com/sha1n/xconf-mcp/internal/app"
	"github.com/spf13/pflag"
)

// Service is a test dependency with a start/stop lifecycle. Start returns
// properties published to the environment context.
type Service interface {
	Start() (map[string]any, error)
	Stop() error
	GetName() string
}

// TestEnvContext exposes the properties published by started services.
type TestEnvContext interface {
	GetProperties() map[string]any
	GetProperty(name string) (any, bool)
}

// TestEnv starts services in order and stops them in reverse order.
type TestEnv interface {
	Start() (map[string]any, error)
	Stop() error
	GetContext() TestEnvContext
}

type properties map[string]any

func (p properties) GetProperties() map[string]any {
	return p
}

func (p properties) GetProperty(name string) (any, bool) {
	val, ok := p[name]
	return val, ok
}

type testEnv struct {
	services []Service
	started  int
	props    properties
}

// NewTestEnv creates a new test environment with the given services
func NewTestEnv(services ...Service) TestEnv {
	return &testEnv{
		services: services,
		props:    make(properties),
	}
}

// Start starts every service. When one fails, the services already started
// are stopped and the start error is returned.
func (e *testEnv) Start() (map[string]any, error) {
	for _, s := range e.services {
		props, err := s.Start()
		if err != nil {
			_ = e.Stop()
			return nil, fmt.Errorf("%s: %w", s.GetName(), err)
		}
		e.started++
		for k, v := range props {
			e.props[k] = v
		}
	}
	return e.props, nil
}

// Stop stops started services in reverse order and returns the last error.
func (e *testEnv) Stop() error {
	var lastErr error
	for ; e.started > 0; e.started-- {
		if err := e.services[e.started-1].Stop(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (e *testEnv) GetContext() TestEnvContext {
	return e.props
}

// GetFreePort returns a free port from the kernel
func GetFreePort() (int, error) {
	return getFreePortWithAddr("localhost:0")
}

// MustGetFreePort returns a free port or fails the test
func MustGetFreePort(t testing.TB) int {
	t.Helper()
	port, err := GetFreePort()
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	return port
}

func getFreePortWithAddr(addrStr string) (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", addrStr)
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// FlagOptions configures NewTestFlags. Zero values select test defaults.
type FlagOptions struct {
	Port      int    // Uses free port if 0
	Transport string // Defaults to "sse"
	AuthType  string // Defaults to "none"
	Host      string // Defaults to "localhost"
	StoreDir  string // Defaults to a test temp dir
	Newline   string // Defaults to "lf"

	// CatalogDir enables the catalog with its index in the given directory.
	CatalogDir   string
	CatalogWatch bool
}

// NewTestFlags creates a pflag.FlagSet with all server flags registered and
// set for a test server.
func NewTestFlags(t testing.TB, opts *FlagOptions) *pflag.FlagSet {
	t.Helper()

	o := FlagOptions{}
	if opts != nil {
		o = *opts
	}
	if o.Port == 0 {
		o.Port = MustGetFreePort(t)
	}
	if o.Transport == "" {
		o.Transport = "sse"
	}
	if o.AuthType == "" {
		o.AuthType = "none"
	}
	if o.Host == "" {
		o.Host = "localhost"
	}
	if o.StoreDir == "" {
		o.StoreDir = t.TempDir()
	}
	if o.Newline == "" {
		o.Newline = "lf"
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterFlags(flags)

	set := func(name, value string) {
		if err := flags.Set(name, value); err != nil {
			t.Fatalf("Failed to set flag %s: %v", name, err)
		}
	}
	set("port", fmt.Sprintf("%d", o.Port))
	set("transport", o.Transport)
	set("auth-type", o.AuthType)
	set("host", o.Host)
	set("store-backend", "fs")
	set("store-base-dir", o.StoreDir)
	set("newline", o.Newline)

	if o.CatalogDir != "" {
		set("catalog-enabled", "true")
		set("catalog-base-dir", o.CatalogDir)
		set("catalog-include", "/db/**")
		set("catalog-watch", fmt.Sprintf("%t", o.CatalogWatch))
		set("catalog-debounce", "50ms")
	}

	return flags
}
