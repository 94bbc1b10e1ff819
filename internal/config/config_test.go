package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/habitual/internal/constants"
)

type testCLI struct {
	Flags `embed:""`
}

func parse(t *testing.T, configPath string, args ...string) Flags {
	t.Helper()
	var cli testCLI
	paths := []string{}
	if configPath != "" {
		paths = append(paths, configPath)
	}
	opts := []kong.Option{
		kong.Exit(func(int) { t.Fatal("unexpected exit") }),
		kong.Configuration(YAML, paths...),
		Vars(),
	}
	parser, err := kong.New(&cli, opts...)
	if err != nil {
		t.Fatalf("kong.New() error = %v", err)
	}
	if _, err := parser.Parse(args); err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}
	return cli.Flags
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestYAMLResolver(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"backend: supabase",
		"supabase-url: https://abcd.supabase.co/",
		"supabase_anon_key: anon-key",
		"debug: true",
	}, "\n"))

	f := parse(t, path)
	if f.Backend != "supabase" || f.SupabaseURL != "https://abcd.supabase.co/" || f.SupabaseAnonKey != "anon-key" || !f.Debug {
		t.Errorf("flags = %+v", f)
	}

	cfg, err := FromFlags(f)
	if err != nil {
		t.Fatalf("FromFlags() error = %v", err)
	}
	if cfg.SupabaseURL != "https://abcd.supabase.co" {
		t.Errorf("SupabaseURL = %q, want trailing slash trimmed", cfg.SupabaseURL)
	}
}

func TestCommandLineOverridesFile(t *testing.T) {
	path := writeConfig(t, "backend: supabase\ndatabase: /tmp/from-file.db\n")
	f := parse(t, path, "--backend=local", "--database=/tmp/from-flag.db")
	if f.Backend != "local" || f.Database != "/tmp/from-flag.db" {
		t.Errorf("flags = %+v", f)
	}
}

func TestConfigFlagLoadsFile(t *testing.T) {
	path := writeConfig(t, "database: /tmp/explicit.db\n")
	f := parse(t, "", "--config="+path)
	if f.Database != "/tmp/explicit.db" {
		t.Errorf("Database = %q", f.Database)
	}
}

func TestMissingConfigFileIsIgnored(t *testing.T) {
	f := parse(t, filepath.Join(t.TempDir(), "absent.yaml"))
	if f.Database != constants.DefaultDatabase {
		t.Errorf("Database = %q, want default", f.Database)
	}
}

func TestYAMLResolverInvalidFile(t *testing.T) {
	if _, err := YAML(strings.NewReader("backend: [unterminated")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := YAML(strings.NewReader("")); err != nil {
		t.Errorf("empty file error = %v", err)
	}
}

func TestFromFlags(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		name        string
		flags       Flags
		wantBackend string
		wantErr     error
	}{
		{"local by default", Flags{Database: "~/habitual.db"}, constants.BackendLocal, nil},
		{"supabase when url set", Flags{SupabaseURL: "https://x.supabase.co", SupabaseAnonKey: "k"}, constants.BackendSupabase, nil},
		{"supabase missing key", Flags{Backend: "supabase", SupabaseURL: "https://x.supabase.co"}, "", ErrMissingAnonKey},
		{"supabase missing url", Flags{Backend: "Supabase"}, "", ErrMissingURL},
		{"local missing database", Flags{Backend: "local"}, "", ErrMissingDatabase},
		{"unknown backend", Flags{Backend: "firebase"}, "", ErrUnknownBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromFlags(tt.flags)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("FromFlags() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if cfg.Backend != tt.wantBackend {
				t.Errorf("Backend = %q, want %q", cfg.Backend, tt.wantBackend)
			}
			if cfg.ConfigDir != filepath.Join(home, ".config", "habitual") {
				t.Errorf("ConfigDir = %q", cfg.ConfigDir)
			}
		})
	}

	cfg, _ := FromFlags(Flags{Database: "~/habitual.db"})
	if cfg.Database != filepath.Join(home, "habitual.db") {
		t.Errorf("Database = %q, want expanded", cfg.Database)
	}
	cfg, _ = FromFlags(Flags{Database: "postgres://u@localhost/habitual"})
	if cfg.Database != "postgres://u@localhost/habitual" {
		t.Errorf("DSN rewritten: %q", cfg.Database)
	}
}

func TestRedacted(t *testing.T) {
	cfg := Config{Backend: constants.BackendSupabase, SupabaseURL: "https://x.supabase.co", SupabaseAnonKey: "eyJhbGciOiJIUzI1NiJ9.payload.sig"}
	for _, row := range cfg.Redacted() {
		if row[0] == "supabase-anon-key" && strings.Contains(row[1], "payload") {
			t.Errorf("anon key not masked: %q", row[1])
		}
	}

	cfg = Config{Backend: constants.BackendLocal, Database: "postgres://ada:hunter2@db:5432/habitual"}
	for _, row := range cfg.Redacted() {
		if row[0] == "database" && row[1] != "postgres://ada:****@db:5432/habitual" {
			t.Errorf("database = %q", row[1])
		}
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := map[string]string{
		"~":            home,
		"~/a/b.db":     filepath.Join(home, "a/b.db"),
		"/abs/path.db": "/abs/path.db",
		"relative.db":  "relative.db",
		"~other/x.db":  "~other/x.db",
	}
	for in, want := range tests {
		if got := ExpandPath(in); got != want {
			t.Errorf("ExpandPath(%q) = %q, want %q", in, got, want)
		}
	}
}
