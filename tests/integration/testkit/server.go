package testkit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sha1n/xconf-mcp/internal/app"
	"github.com/sha1n/xconf-mcp/internal/config"
	"github.com/spf13/pflag"
)

// Property names published by ServerService.
const (
	PropBaseURL  = "server.base_url"
	PropSSEURL   = "server.sse_url"
	PropStoreDir = "server.store_dir"
)

// ServerService runs the MCP server over SSE in-process.
type ServerService struct {
	flags   *pflag.FlagSet
	srv     *http.Server
	cleanup func()
	errs    chan error
}

// NewServerService creates a server configured by flags, usually built with
// NewTestFlags.
func NewServerService(flags *pflag.FlagSet) *ServerService {
	return &ServerService{flags: flags}
}

// GetName implements Service.
func (s *ServerService) GetName() string {
	return "xconf-mcp"
}

// Start implements Service. It returns once /health answers.
func (s *ServerService) Start() (map[string]any, error) {
	settings, err := config.LoadSettingsWithFlags(s.flags)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateSettings(settings); err != nil {
		return nil, err
	}

	mcpServer, cleanup, err := app.CreateMCPServer(settings, "test")
	if err != nil {
		return nil, err
	}
	s.cleanup = cleanup

	srv, err := app.NewSSEServer(mcpServer, settings)
	if err != nil {
		s.runCleanup()
		return nil, err
	}
	s.srv = srv
	s.errs = make(chan error, 1)
	go func() {
		s.errs <- srv.ListenAndServe()
	}()

	baseURL := fmt.Sprintf("http://%s:%d", settings.Host, settings.Port)
	if err := s.waitHealthy(baseURL+"/health", 5*time.Second); err != nil {
		_ = s.Stop()
		return nil, err
	}

	return map[string]any{
		PropBaseURL:  baseURL,
		PropSSEURL:   baseURL + "/sse",
		PropStoreDir: settings.Store.BaseDir,
	}, nil
}

func (s *ServerService) waitHealthy(url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case err := <-s.errs:
			return fmt.Errorf("server exited: %w", err)
		default:
		}
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("server not healthy after %s", timeout)
}

// Stop implements Service.
func (s *ServerService) Stop() error {
	defer s.runCleanup()
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// SSE streams stay open; Close drops them once Shutdown gives up
	if err := s.srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return s.srv.Close()
}

func (s *ServerService) runCleanup() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}
