package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitual/internal/backend"
	"github.com/julianstephens/habitual/internal/backend/local"
	"github.com/julianstephens/habitual/internal/backend/supabase"
	"github.com/julianstephens/habitual/internal/config"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/habits"
	"github.com/julianstephens/habitual/internal/keyring"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/session"
)

var (
	ErrHabitNotFound  = errors.New("habit not found")
	ErrAmbiguousHabit = errors.New("more than one habit matches")
)

// PromptFunc asks the user for a value. secret masks the input.
type PromptFunc func(title string, secret bool) (string, error)

type Context struct {
	ctx     context.Context
	Config  config.Config
	Client  backend.Client
	Session *session.Store
	Habits  *habits.Service
	Out     io.Writer
	Prompt  PromptFunc
}

// NewContext wires a session store and habit service to client.
// The store is not started.
func NewContext(ctx context.Context, cfg config.Config, client backend.Client) *Context {
	store := session.New(client)
	return &Context{
		ctx:     ctx,
		Config:  cfg,
		Client:  client,
		Session: store,
		Habits:  habits.NewService(client, store),
		Out:     os.Stdout,
		Prompt:  PromptHuh,
	}
}

// Open connects to the backend selected by cfg and restores any saved session.
func Open(ctx context.Context, cfg config.Config) (*Context, error) {
	client, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c := NewContext(ctx, cfg, client)
	c.Session.Start(ctx)
	return c, nil
}

// OpenBackend builds the backend client named by cfg.Backend
func OpenBackend(ctx context.Context, cfg config.Config) (backend.Client, error) {
	switch cfg.Backend {
	case constants.BackendSupabase:
		logger.Debug("Using hosted backend", "url", cfg.SupabaseURL)
		return supabase.New(supabase.Options{
			URL:     cfg.SupabaseURL,
			AnonKey: cfg.SupabaseAnonKey,
			Storage: sessionStorage(supabase.ProjectRef(cfg.SupabaseURL)),
		})
	case constants.BackendLocal:
		account := "local"
		if !local.IsPostgresDSN(cfg.Database) {
			account = "local:" + cfg.Database
		}
		b, err := local.Open(ctx, cfg.Database, local.Options{Storage: sessionStorage(account)})
		if err != nil {
			return nil, fmt.Errorf("failed to open local backend: %w", err)
		}
		logger.Debug("Using local backend", "location", b.Location())
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
}

// sessionStorage keeps sessions in the OS keyring when there is one, and in
// memory otherwise.
func sessionStorage(account string) backend.SessionStorage {
	if keyring.IsAvailable() {
		return keyring.NewSessionStore(account)
	}
	logger.Warn("OS keyring unavailable, sessions will not persist between runs")
	return backend.NewMemoryStorage()
}

// Close stops the session store and releases the backend
func (c *Context) Close() error {
	c.Session.Close()
	return c.Client.Close()
}

// Context returns the context commands run under
func (c *Context) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Printf writes command output
func (c *Context) Printf(format string, args ...any) {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, format, args...)
}

// ask returns value, prompting for it when empty
func (c *Context) ask(value, title string, secret bool) (string, error) {
	if value != "" {
		return value, nil
	}
	if c.Prompt == nil {
		return "", fmt.Errorf("%s is required", strings.ToLower(title))
	}
	return c.Prompt(title, secret)
}

// PromptHuh reads a single value with a huh input
func PromptHuh(title string, secret bool) (string, error) {
	var value string
	input := huh.NewInput().Title(title).Value(&value)
	if secret {
		input = input.EchoMode(huh.EchoModePassword)
	}
	err := huh.NewForm(huh.NewGroup(input)).WithTheme(huh.ThemeDracula()).Run()
	return value, err
}

// ResolveHabit finds an active habit by id, id prefix or case-insensitive name.
func (c *Context) ResolveHabit(ref string) (models.Habit, error) {
	list, err := c.Habits.ListActive(c.Context())
	if err != nil {
		return models.Habit{}, err
	}
	ref = strings.TrimSpace(ref)

	var matches []models.Habit
	for _, h := range list {
		if h.ID == ref {
			return h, nil
		}
		if strings.EqualFold(h.Name, ref) || (len(ref) >= 8 && strings.HasPrefix(h.ID, ref)) {
			matches = append(matches, h)
		}
	}
	switch len(matches) {
	case 0:
		return models.Habit{}, fmt.Errorf("%w: %q", ErrHabitNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return models.Habit{}, fmt.Errorf("%w %q; use its id", ErrAmbiguousHabit, ref)
	}
}
