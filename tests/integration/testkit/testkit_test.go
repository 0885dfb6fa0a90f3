package testkit

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

type mockService struct {
	name       string
	startProps map[string]any
	startErr   error
	stopErr    error
	events     *[]string
}

func (m *mockService) Start() (map[string]any, error) {
	if m.events != nil {
		*m.events = append(*m.events, "start "+m.name)
	}
	return m.startProps, m.startErr
}

func (m *mockService) Stop() error {
	if m.events != nil {
		*m.events = append(*m.events, "stop "+m.name)
	}
	return m.stopErr
}

func (m *mockService) GetName() string {
	return m.name
}

func TestTestEnv_StartMergesProperties(t *testing.T) {
	env := NewTestEnv(
		&mockService{name: "svc1", startProps: map[string]any{"key1": "value1", "shared": 1}},
		&mockService{name: "svc2", startProps: map[string]any{"key2": "value2", "shared": 2}},
	)

	props, err := env.Start()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if props["key1"] != "value1" || props["key2"] != "value2" {
		t.Errorf("Unexpected properties: %v", props)
	}
	if props["shared"] != 2 {
		t.Errorf("Expected later services to win, got %v", props["shared"])
	}

	val, ok := env.GetContext().GetProperty("key1")
	if !ok || val != "value1" {
		t.Errorf("GetProperty(key1) = %v, %v", val, ok)
	}
	if _, ok := env.GetContext().GetProperty("missing"); ok {
		t.Error("Expected missing property not to be found")
	}
}

func TestTestEnv_StartFailureStopsStartedServices(t *testing.T) {
	var events []string
	env := NewTestEnv(
		&mockService{name: "svc1", events: &events},
		&mockService{name: "svc2", events: &events, startErr: errors.New("start failed")},
		&mockService{name: "svc3", events: &events},
	)

	_, err := env.Start()
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "svc2: start failed") {
		t.Errorf("Unexpected error: %v", err)
	}

	want := []string{"start svc1", "start svc2", "stop svc1"}
	if !slices.Equal(events, want) {
		t.Errorf("Events = %v, want %v", events, want)
	}
}

func TestTestEnv_StopReverseOrder(t *testing.T) {
	var events []string
	env := NewTestEnv(
		&mockService{name: "svc1", events: &events, stopErr: errors.New("error1")},
		&mockService{name: "svc2", events: &events, stopErr: errors.New("error2")},
	)

	if _, err := env.Start(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	err := env.Stop()

	want := []string{"start svc1", "start svc2", "stop svc2", "stop svc1"}
	if !slices.Equal(events, want) {
		t.Errorf("Events = %v, want %v", events, want)
	}
	if err == nil || err.Error() != "error1" {
		t.Errorf("Expected last error 'error1', got %v", err)
	}

	// Stopping twice is a no-op
	if err := env.Stop(); err != nil {
		t.Errorf("Unexpected error on second stop: %v", err)
	}
	if len(events) != 4 {
		t.Errorf("Expected no more events, got %v", events)
	}
}

func TestGetFreePort(t *testing.T) {
	port, err := GetFreePort()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if port <= 0 {
		t.Errorf("Expected positive port, got %d", port)
	}
}

func TestGetFreePortWithAddr_InvalidAddr(t *testing.T) {
	if _, err := getFreePortWithAddr("invalid:address:format"); err == nil {
		t.Error("Expected error for invalid address")
	}
}

func TestNewTestFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		flags := NewTestFlags(t, nil)

		expect := map[string]string{
			"transport":     "sse",
			"auth-type":     "none",
			"host":          "localhost",
			"store-backend": "fs",
			"newline":       "lf",
		}
		for name, want := range expect {
			if got, _ := flags.GetString(name); got != want {
				t.Errorf("%s = %q, want %q", name, got, want)
			}
		}
		if port, _ := flags.GetInt("port"); port <= 0 {
			t.Errorf("Expected positive port, got %d", port)
		}
		if dir, _ := flags.GetString("store-base-dir"); dir == "" {
			t.Error("Expected a store directory")
		}
		if enabled, _ := flags.GetBool("catalog-enabled"); enabled {
			t.Error("Expected catalog to be disabled")
		}
	})

	t.Run("custom options", func(t *testing.T) {
		flags := NewTestFlags(t, &FlagOptions{
			Port:         9999,
			Transport:    "stdio",
			Newline:      "crlf",
			CatalogDir:   "/tmp/catalog",
			CatalogWatch: true,
		})

		if port, _ := flags.GetInt("port"); port != 9999 {
			t.Errorf("Expected port 9999, got %d", port)
		}
		if transport, _ := flags.GetString("transport"); transport != "stdio" {
			t.Errorf("Expected transport 'stdio', got %s", transport)
		}
		if newline, _ := flags.GetString("newline"); newline != "crlf" {
			t.Errorf("Expected newline 'crlf', got %s", newline)
		}
		if enabled, _ := flags.GetBool("catalog-enabled"); !enabled {
			t.Error("Expected catalog to be enabled")
		}
		if watch, _ := flags.GetBool("catalog-watch"); !watch {
			t.Error("Expected catalog watch to be enabled")
		}
		if dir, _ := flags.GetString("catalog-base-dir"); dir != "/tmp/catalog" {
			t.Errorf("Unexpected catalog dir %q", dir)
		}
	})
}
