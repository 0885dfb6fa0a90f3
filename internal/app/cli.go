package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")

	RegisterStoreFlags(flags)

	flags.Bool("catalog-enabled", false, "Enable the declaration search catalog")
	flags.String("catalog-base-dir", "", "Directory of the catalog index and manifest")
	flags.StringSlice("catalog-collections", nil, "Collections to catalog in addition to include patterns (comma-separated)")
	flags.StringSlice("catalog-include", nil, "Glob patterns of collections to catalog (comma-separated, e.g. /db/**)")
	flags.Int("catalog-max-results", 0, "Maximum search results returned")
	flags.Bool("catalog-watch", false, "Refresh the catalog when configuration files change (fs store only)")
	flags.Duration("catalog-debounce", 0, "Quiet period before a changed collection is refreshed")
	flags.Duration("catalog-sync-timeout", 0, "Maximum wait for another instance refreshing the catalog")
}

// RegisterStoreFlags registers the flags selecting and formatting the store.
// They are shared by the server and the show command.
func RegisterStoreFlags(flags *pflag.FlagSet) {
	flags.StringP("store-backend", "b", "", "Store backend: fs or rest")
	flags.StringP("store-base-dir", "d", "", "Root directory of the fs store")
	flags.String("store-url", "", "Database URL of the rest store (e.g. http://localhost:8080/exist)")
	flags.String("store-username", "", "Rest store username")
	flags.String("store-password", "", "Rest store password")
	flags.Duration("store-timeout", 0, "Rest store request timeout")
	flags.Duration("store-lock-timeout", 0, "Maximum wait for the fs store write lock")
	flags.StringP("newline", "n", "", "Newline of saved configurations: lf or crlf")
}
