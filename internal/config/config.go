// Package config holds the command-line flags shared by every command and
// the YAML file that can supply their defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/habitual/internal/constants"
)

var (
	ErrUnknownBackend  = errors.New("unknown backend")
	ErrMissingURL      = errors.New("supabase-url is required for the supabase backend")
	ErrMissingAnonKey  = errors.New("supabase-anon-key is required for the supabase backend")
	ErrMissingDatabase = errors.New("database is required for the local backend")
)

// Flags are the global options. Anything not given on the command line
// may come from the environment or the config file.
type Flags struct {
	ConfigFile      kong.ConfigFlag `name:"config" help:"Load flags from this YAML file (default ${config_file})."`
	Backend         string          `help:"Backend to use (supabase or local). Defaults to supabase when a URL is configured." env:"HABITUAL_BACKEND"`
	SupabaseURL     string          `name:"supabase-url" help:"Project URL of the hosted backend." env:"HABITUAL_SUPABASE_URL"`
	SupabaseAnonKey string          `name:"supabase-anon-key" help:"Public anon key of the hosted backend." env:"HABITUAL_SUPABASE_ANON_KEY"`
	Database        string          `help:"SQLite path or PostgreSQL connection string for the local backend." default:"${database}" env:"HABITUAL_DATABASE"`
	Debug           bool            `help:"Enable debug logging." env:"HABITUAL_DEBUG"`
	LogLevel        string          `name:"log-level" help:"Log level (debug, info, warn, error)." env:"HABITUAL_LOG_LEVEL"`
}

// Vars supplies the interpolated defaults used in Flags
func Vars() kong.Vars {
	return kong.Vars{
		"config_file": constants.DefaultConfigFile,
		"database":    constants.DefaultDatabase,
		"version":     constants.Version,
	}
}

// Config is the resolved configuration
type Config struct {
	Backend         string
	SupabaseURL     string
	SupabaseAnonKey string
	Database        string
	ConfigDir       string
	ConfigFile      string
	Debug           bool
	LogLevel        string
}

// FromFlags resolves f into a Config, picking a backend when none was named.
func FromFlags(f Flags) (Config, error) {
	cfg := Config{
		Backend:         strings.ToLower(strings.TrimSpace(f.Backend)),
		SupabaseURL:     strings.TrimRight(strings.TrimSpace(f.SupabaseURL), "/"),
		SupabaseAnonKey: strings.TrimSpace(f.SupabaseAnonKey),
		Database:        f.Database,
		ConfigFile:      ExpandPath(string(f.ConfigFile)),
		Debug:           f.Debug,
		LogLevel:        f.LogLevel,
	}
	if cfg.ConfigFile == "" {
		cfg.ConfigFile = ExpandPath(constants.DefaultConfigFile)
	}
	cfg.ConfigDir = filepath.Dir(cfg.ConfigFile)
	if cfg.Database != "" && !isURL(cfg.Database) {
		cfg.Database = ExpandPath(cfg.Database)
	}
	if cfg.Backend == "" {
		cfg.Backend = constants.BackendLocal
		if cfg.SupabaseURL != "" {
			cfg.Backend = constants.BackendSupabase
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks that the selected backend has what it needs
func (c Config) Validate() error {
	switch c.Backend {
	case constants.BackendSupabase:
		if c.SupabaseURL == "" {
			return ErrMissingURL
		}
		if c.SupabaseAnonKey == "" {
			return ErrMissingAnonKey
		}
	case constants.BackendLocal:
		if c.Database == "" {
			return ErrMissingDatabase
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	return nil
}

// Redacted returns the configuration as display rows with secrets masked.
func (c Config) Redacted() [][2]string {
	rows := [][2]string{
		{"config", c.ConfigFile},
		{"backend", c.Backend},
	}
	switch c.Backend {
	case constants.BackendSupabase:
		rows = append(rows,
			[2]string{"supabase-url", c.SupabaseURL},
			[2]string{"supabase-anon-key", mask(c.SupabaseAnonKey)},
		)
	default:
		rows = append(rows, [2]string{"database", maskDSN(c.Database)})
	}
	rows = append(rows, [2]string{"debug", fmt.Sprintf("%t", c.Debug)})
	if c.LogLevel != "" {
		rows = append(rows, [2]string{"log-level", c.LogLevel})
	}
	return rows
}

func mask(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", 8) + s[len(s)-4:]
}

// maskDSN hides the password in a postgres:// URL
func maskDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPass := strings.Cut(creds, ":")
	if !hasPass {
		return dsn
	}
	return scheme + "://" + user + ":****@" + host
}

func isURL(s string) bool {
	return strings.Contains(s, "://")
}

// ExpandPath replaces a leading ~ with the user's home directory
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}

// YAML is a kong configuration loader. Keys match flag names, with either
// hyphens or underscores.
//
//	backend: supabase
//	supabase-url: https://abcd.supabase.co
//	supabase-anon-key: eyJ...
//	debug: true
func YAML(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	var f kong.ResolverFunc = func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		if flag.Name == "config" {
			return nil, nil
		}
		for _, key := range []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")} {
			if v, ok := values[key]; ok {
				if s, ok := v.(string); ok && flag.Name != "supabase-anon-key" {
					return ExpandPath(s), nil
				}
				return v, nil
			}
		}
		return nil, nil
	}
	return f, nil
}
