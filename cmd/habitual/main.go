package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/cli/system"
	"github.com/julianstephens/habitual/internal/config"
	"github.com/julianstephens/habitual/internal/constants"
	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/logger"
)

var CLI struct {
	config.Flags `embed:""`

	Version kong.VersionFlag `help:"Print version and exit."`

	Tui    system.TuiCmd    `cmd:"" help:"Launch the interactive TUI." default:"1"`
	Doctor system.DoctorCmd `cmd:"" help:"Run health checks."`
	Config system.ConfigCmd `cmd:"" help:"Inspect configuration."`

	Signup  cli.SignUpCmd  `cmd:"" help:"Create an account."`
	Signin  cli.SignInCmd  `cmd:"" help:"Sign in to your account."`
	Signout cli.SignOutCmd `cmd:"" help:"Sign out and forget the saved session."`
	Whoami  cli.WhoAmICmd  `cmd:"" help:"Show the signed-in user."`

	Habit cli.HabitCmd `cmd:"" help:"Manage habits."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Track your habits and build a better you, one day at a time."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Configuration(config.YAML, constants.DefaultConfigFile),
		config.Vars(),
	)

	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, cfgErr := config.FromFlags(CLI.Flags)

	if err := logger.Init(logger.Config{
		Debug:       cfg.Debug,
		ConfigDir:   cfg.ConfigDir,
		Level:       cfg.LogLevel,
		Interactive: kctx.Command() == "tui",
	}); err != nil {
		apperrors.Fatalf("failed to initialize logger: %v", err)
	}

	if cfgErr != nil {
		// config show still prints what was resolved so the problem can be seen
		if kctx.Command() != "config show" && kctx.Command() != "config" {
			apperrors.Fatal(cfgErr)
		}
		if err := kctx.Run(cli.NewContext(appCtx, cfg, nil)); err != nil {
			apperrors.Fatal(err)
		}
		apperrors.Fatal(cfgErr)
	}

	ctx, err := cli.Open(appCtx, cfg)
	if err != nil {
		apperrors.Fatal(err)
	}

	err = kctx.Run(ctx)
	if cerr := ctx.Close(); cerr != nil {
		logger.Warn("Failed to close backend", "error", cerr)
	}
	if err != nil {
		apperrors.Fatal(err)
	}
}
