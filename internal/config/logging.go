package config

import (
	"context"
	"log/slog"
)

const masked = "****"

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == "sse" {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)
		logger.InfoContext(ctx, "Config: auth.type", "value", s.Auth.Type)
		switch s.Auth.Type {
		case AuthTypeBasic:
			logger.InfoContext(ctx, "Config: auth.basic.username", "value", s.Auth.Basic.Username)
			logger.InfoContext(ctx, "Config: auth.basic.password", "value", masked)
		case AuthTypeAPIKey:
			logger.InfoContext(ctx, "Config: auth.api_keys", "count", len(s.Auth.APIKeys))
		}
	}

	logger.InfoContext(ctx, "Config: store.backend", "value", s.Store.Backend)
	switch s.Store.Backend {
	case StoreBackendFS:
		logger.InfoContext(ctx, "Config: store.base_dir", "value", s.Store.BaseDir)
		logger.InfoContext(ctx, "Config: store.lock_timeout", "value", s.Store.LockTimeout)
	case StoreBackendREST:
		logger.InfoContext(ctx, "Config: store.url", "value", s.Store.URL)
		logger.InfoContext(ctx, "Config: store.timeout", "value", s.Store.Timeout)
		if s.Store.Username != "" {
			logger.InfoContext(ctx, "Config: store.username", "value", s.Store.Username)
			logger.InfoContext(ctx, "Config: store.password", "value", masked)
		}
	}

	logger.InfoContext(ctx, "Config: format.newline", "value", s.Format.Newline)

	logger.InfoContext(ctx, "Config: catalog.enabled", "value", s.Catalog.Enabled)
	if s.Catalog.Enabled {
		logger.InfoContext(ctx, "Config: catalog.base_dir", "value", s.Catalog.BaseDir)
		logger.InfoContext(ctx, "Config: catalog.include", "value", s.Catalog.Include)
		logger.InfoContext(ctx, "Config: catalog.collections", "count", len(s.Catalog.Collections))
		logger.InfoContext(ctx, "Config: catalog.watch", "value", s.Catalog.Watch)
	}
}

// SettingsLogValue returns a slog.Value for Settings with secrets masked
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.Any("auth", AuthSettingsLogValue(s.Auth)),
		slog.Any("store", StoreSettingsLogValue(s.Store)),
		slog.String("newline", s.Format.Newline),
		slog.Bool("catalog", s.Catalog.Enabled),
	)
}

// AuthSettingsLogValue returns a slog.Value for AuthSettings with secrets masked
func AuthSettingsLogValue(s AuthSettings) slog.Value {
	keys := make([]string, len(s.APIKeys))
	for i := range s.APIKeys {
		keys[i] = masked
	}
	return slog.GroupValue(
		slog.String("type", s.Type),
		slog.String("username", s.Basic.Username),
		slog.String("password", maskIfSet(s.Basic.Password)),
		slog.Any("api_keys", keys),
	)
}

// StoreSettingsLogValue returns a slog.Value for StoreSettings with the password masked
func StoreSettingsLogValue(s StoreSettings) slog.Value {
	return slog.GroupValue(
		slog.String("backend", s.Backend),
		slog.String("base_dir", s.BaseDir),
		slog.String("url", s.URL),
		slog.String("username", s.Username),
		slog.String("password", maskIfSet(s.Password)),
		slog.Duration("timeout", s.Timeout),
	)
}

func maskIfSet(secret string) string {
	if secret == "" {
		return ""
	}
	return masked
}
