package system

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/keyring"
)

const pingTimeout = 5 * time.Second

// schemaVersioner is implemented by backends that manage their own schema
type schemaVersioner interface {
	SchemaVersion() (current, latest int, err error)
}

type DoctorCmd struct{}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Printf("Running diagnostics...\n\n")

	hasError := false
	fail := func(name string, err error) {
		ctx.Printf("❌ %s: FAIL\n", name)
		ctx.Printf("   Error: %v\n", err)
		hasError = true
	}

	// Check 1: configuration
	if err := ctx.Config.Validate(); err != nil {
		fail("Configuration", err)
	} else {
		ctx.Printf("✓ Configuration: OK (%s backend)\n", ctx.Config.Backend)
	}

	// Check 2: backend reachable
	reachable := false
	if err := checkBackendReachable(ctx); err != nil {
		fail("Backend reachable", err)
	} else {
		ctx.Printf("✓ Backend reachable: OK\n")
		reachable = true
	}

	// Check 3: schema version, local backend only
	if v, ok := ctx.Client.(schemaVersioner); ok {
		if !reachable {
			ctx.Printf("⊘ Schema version: SKIPPED (backend not reachable)\n")
		} else if err := checkSchemaVersion(v); err != nil {
			fail("Schema version", err)
		} else {
			ctx.Printf("✓ Schema version: OK\n")
		}
	}

	// Check 4: keyring (warning only)
	if !keyring.IsAvailable() {
		ctx.Printf("⚠ OS keyring: WARNING\n")
		ctx.Printf("   %v; sessions will not persist between runs\n", keyring.ErrKeyringUnavailable)
	} else {
		ctx.Printf("✓ OS keyring: OK\n")
	}

	// Check 5: clock
	if err := checkClockTimezone(); err != nil {
		fail("Clock/timezone", err)
	} else {
		zone, _ := time.Now().Zone()
		ctx.Printf("✓ Clock/timezone: OK (%s)\n", zone)
	}

	// Check 6: session (informational)
	if st := ctx.Session.State(); st.SignedIn() {
		ctx.Printf("✓ Session: signed in as %s\n", st.User.Email)
	} else {
		ctx.Printf("⊘ Session: not signed in\n")
	}

	ctx.Printf("\n")
	if hasError {
		ctx.Printf("Diagnostics completed with errors.\n")
		return fmt.Errorf("one or more health checks failed")
	}
	ctx.Printf("All diagnostics passed!\n")
	return nil
}

func checkBackendReachable(ctx *cli.Context) error {
	if ctx.Client == nil {
		return fmt.Errorf("backend is not configured")
	}
	pingCtx, cancel := context.WithTimeout(ctx.Context(), pingTimeout)
	defer cancel()
	return ctx.Client.Ping(pingCtx)
}

func checkSchemaVersion(v schemaVersioner) error {
	current, latest, err := v.SchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d", current, latest)
	}
	return nil
}

func checkClockTimezone() error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	return nil
}
