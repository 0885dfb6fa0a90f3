package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sha1n/xconf-mcp/internal/xconf"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of all environment variables read by LoadSettings
const EnvPrefix = "XCONF_MCP"

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// Store backend constants
const (
	StoreBackendFS   = "fs"
	StoreBackendREST = "rest"
)

// Newline constants
const (
	NewlineLF   = "lf"
	NewlineCRLF = "crlf"
)

// AuthSettings configuration for authentication of SSE clients
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// StoreSettings configuration of the database holding collection configurations
type StoreSettings struct {
	Backend     string        `mapstructure:"backend"` // StoreBackendFS or StoreBackendREST
	BaseDir     string        `mapstructure:"base_dir"`
	URL         string        `mapstructure:"url"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	Timeout     time.Duration `mapstructure:"timeout"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// FormatSettings configuration of serialized configuration documents
type FormatSettings struct {
	Newline string `mapstructure:"newline"` // NewlineLF or NewlineCRLF
}

// Sequence returns the line break characters for the configured newline.
func (f FormatSettings) Sequence() string {
	if f.Newline == NewlineCRLF {
		return xconf.NewlineCRLF
	}
	return xconf.NewlineLF
}

// CatalogSettings configuration of the index declaration catalog
type CatalogSettings struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseDir     string        `mapstructure:"base_dir"`
	Collections []string      `mapstructure:"collections"`
	Include     []string      `mapstructure:"include"`
	MaxResults  int           `mapstructure:"max_results"`
	Watch       bool          `mapstructure:"watch"`
	Debounce    time.Duration `mapstructure:"debounce"`
	SyncTimeout time.Duration `mapstructure:"sync_timeout"`
}

// Settings application settings
type Settings struct {
	Transport string          `mapstructure:"transport"`
	Host      string          `mapstructure:"host"`
	Port      int             `mapstructure:"port"`
	Auth      AuthSettings    `mapstructure:"auth"`
	Store     StoreSettings   `mapstructure:"store"`
	Format    FormatSettings  `mapstructure:"format"`
	Catalog   CatalogSettings `mapstructure:"catalog"`
}

// flagBindings maps settings keys to CLI flag names
var flagBindings = map[string]string{
	"transport":            "transport",
	"host":                 "host",
	"port":                 "port",
	"auth.type":            "auth-type",
	"auth.basic.username":  "auth-basic-username",
	"auth.basic.password":  "auth-basic-password",
	"auth.api_keys":        "auth-api-keys",
	"store.backend":        "store-backend",
	"store.base_dir":       "store-base-dir",
	"store.url":            "store-url",
	"store.username":       "store-username",
	"store.password":       "store-password",
	"store.timeout":        "store-timeout",
	"store.lock_timeout":   "store-lock-timeout",
	"format.newline":       "newline",
	"catalog.enabled":      "catalog-enabled",
	"catalog.base_dir":     "catalog-base-dir",
	"catalog.collections":  "catalog-collections",
	"catalog.include":      "catalog-include",
	"catalog.max_results":  "catalog-max-results",
	"catalog.watch":        "catalog-watch",
	"catalog.debounce":     "catalog-debounce",
	"catalog.sync_timeout": "catalog-sync-timeout",
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	v.SetDefault("transport", "stdio")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("auth.type", AuthTypeNone)

	v.SetDefault("store.backend", StoreBackendFS)
	v.SetDefault("store.base_dir", defaultBaseDir("data"))
	v.SetDefault("store.timeout", 30*time.Second)
	v.SetDefault("store.lock_timeout", 10*time.Second)

	v.SetDefault("format.newline", NewlineLF)

	v.SetDefault("catalog.enabled", false)
	v.SetDefault("catalog.base_dir", defaultBaseDir("catalog"))
	v.SetDefault("catalog.include", []string{"/db/**"})
	v.SetDefault("catalog.max_results", 20)
	v.SetDefault("catalog.watch", false)
	v.SetDefault("catalog.debounce", 250*time.Millisecond)
	v.SetDefault("catalog.sync_timeout", 60*time.Second)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Nested keys are only picked up by Unmarshal when bound explicitly
	for key := range flagBindings {
		_ = v.BindEnv(key, envName(key))
	}

	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	settings.Auth.APIKeys = splitList(envName("auth.api_keys"), settings.Auth.APIKeys)
	settings.Catalog.Collections = splitList(envName("catalog.collections"), settings.Catalog.Collections)
	settings.Catalog.Include = splitList(envName("catalog.include"), settings.Catalog.Include)

	settings.Store.BaseDir = expandHomeDir(settings.Store.BaseDir)
	settings.Catalog.BaseDir = expandHomeDir(settings.Catalog.BaseDir)
	settings.Format.Newline = strings.ToLower(settings.Format.Newline)

	return &settings, nil
}

// envName returns the environment variable for a settings key
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// splitList normalizes a list setting. A comma-separated env var arrives as a
// single element and is split; entries are trimmed and empty ones dropped.
func splitList(env string, values []string) []string {
	if raw := os.Getenv(env); raw != "" {
		if len(values) == 0 || (len(values) == 1 && strings.Contains(values[0], ",")) {
			values = strings.Split(raw, ",")
		}
	}
	var result []string
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			result = append(result, s)
		}
	}
	return result
}

// defaultBaseDir returns a directory under ~/.xconf-mcp
func defaultBaseDir(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".xconf-mcp", name)
	}
	return filepath.Join(home, ".xconf-mcp", name)
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// ValidateSettings checks for conflicting configurations.
func ValidateSettings(s *Settings) error {
	switch s.Transport {
	case "stdio", "sse":
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	if err := validateAuthSettings(&s.Auth); err != nil {
		return err
	}
	if err := validateStoreSettings(&s.Store); err != nil {
		return err
	}

	switch s.Format.Newline {
	case NewlineLF, NewlineCRLF:
	default:
		return errors.New("newline must be 'lf' or 'crlf', got: " + s.Format.Newline)
	}

	return validateCatalogSettings(&s.Catalog)
}

func validateAuthSettings(a *AuthSettings) error {
	hasBasicCreds := a.Basic.Username != "" || a.Basic.Password != ""
	hasAPIKeys := len(a.APIKeys) > 0

	switch a.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if a.Basic.Username == "" || a.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + a.Type)
	}
	return nil
}

func validateStoreSettings(s *StoreSettings) error {
	switch s.Backend {
	case StoreBackendFS:
		if s.BaseDir == "" {
			return errors.New("store-base-dir cannot be empty for the fs backend")
		}
		if s.LockTimeout <= 0 {
			return errors.New("store-lock-timeout must be positive")
		}
	case StoreBackendREST:
		if s.URL == "" {
			return errors.New("store-url is required for the rest backend")
		}
		if s.Timeout <= 0 {
			return errors.New("store-timeout must be positive")
		}
		if s.Password != "" && s.Username == "" {
			return errors.New("store-password requires store-username")
		}
	default:
		return fmt.Errorf("store-backend must be '%s' or '%s', got: %s", StoreBackendFS, StoreBackendREST, s.Backend)
	}
	return nil
}

func validateCatalogSettings(c *CatalogSettings) error {
	if !c.Enabled {
		return nil
	}
	if c.BaseDir == "" {
		return errors.New("catalog-base-dir cannot be empty")
	}
	if c.MaxResults <= 0 {
		return errors.New("catalog-max-results must be positive")
	}
	if c.SyncTimeout <= 0 {
		return errors.New("catalog-sync-timeout must be positive")
	}
	if c.Watch && c.Debounce <= 0 {
		return errors.New("catalog-debounce must be positive when catalog-watch is enabled")
	}
	if len(c.Include) == 0 && len(c.Collections) == 0 {
		return errors.New("catalog requires at least one include pattern or collection")
	}
	return nil
}
