package cli

import (
	"fmt"
	"strings"

	"github.com/julianstephens/habitual/internal/habits"
	"github.com/julianstephens/habitual/internal/models"
)

type HabitCmd struct {
	Add     HabitAddCmd     `cmd:"" help:"Add a new habit."`
	List    HabitListCmd    `cmd:"" help:"List active habits, newest first."`
	Done    HabitDoneCmd    `cmd:"" help:"Mark a habit done for today."`
	Skip    HabitSkipCmd    `cmd:"" help:"Mark a habit skipped for today."`
	Today   HabitTodayCmd   `cmd:"" help:"Show today's habit status."`
	Archive HabitArchiveCmd `cmd:"" help:"Archive a habit."`
}

type HabitAddCmd struct {
	Name        string `arg:"" help:"Habit name."`
	Description string `help:"Optional description." short:"d"`
	Category    string `help:"Category: health, productivity, learning, mindfulness, social or general." short:"c" default:"health"`
	Frequency   int    `help:"Target frequency." short:"f" default:"1"`
}

func (c *HabitAddCmd) Run(ctx *Context) error {
	category, err := models.ParseCategory(c.Category)
	if err != nil {
		return fmt.Errorf("%w: got %q", habits.ErrInvalidCategory, c.Category)
	}
	if c.Frequency < 1 {
		return habits.ErrInvalidFrequency
	}

	habit, err := ctx.Habits.Create(ctx.Context(), habits.Form{
		Name:            c.Name,
		Description:     c.Description,
		Category:        category,
		TargetFrequency: c.Frequency,
	})
	if err != nil {
		return err
	}

	ctx.Printf("Added habit: %s (%s)\n", habit.Name, habit.Category.Label())
	return nil
}

type HabitListCmd struct {
	IDs bool `help:"Show habit ids." name:"ids"`
}

func (c *HabitListCmd) Run(ctx *Context) error {
	list, err := ctx.Habits.ListActive(ctx.Context())
	if err != nil {
		return err
	}

	if len(list) == 0 {
		ctx.Printf("No habits yet. Add one with 'habitual habit add'.\n")
		return nil
	}

	for _, h := range list {
		line := fmt.Sprintf("%-24s [%s]", h.Name, h.Category.Label())
		if h.TargetFrequency > 1 {
			line += fmt.Sprintf(" x%d", h.TargetFrequency)
		}
		if c.IDs {
			line = h.ID + "  " + line
		}
		ctx.Printf("%s\n", strings.TrimRight(line, " "))
		if h.Description != "" {
			ctx.Printf("    %s\n", h.Description)
		}
	}
	return nil
}

type HabitDoneCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
}

func (c *HabitDoneCmd) Run(ctx *Context) error {
	return logHabit(ctx, c.Habit, true)
}

type HabitSkipCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
}

func (c *HabitSkipCmd) Run(ctx *Context) error {
	return logHabit(ctx, c.Habit, false)
}

func logHabit(ctx *Context, ref string, done bool) error {
	habit, err := ctx.ResolveHabit(ref)
	if err != nil {
		return err
	}
	entry, err := ctx.Habits.Log(ctx.Context(), habit.ID, done)
	if err != nil {
		return err
	}
	ctx.Printf("Marked %q %s for %s\n", habit.Name, models.StatusOf(&entry), entry.LogDate)
	return nil
}

type HabitTodayCmd struct{}

func (c *HabitTodayCmd) Run(ctx *Context) error {
	list, err := ctx.Habits.ListActive(ctx.Context())
	if err != nil {
		return err
	}
	if len(list) == 0 {
		ctx.Printf("No habits yet.\n")
		return nil
	}
	statuses, err := ctx.Habits.TodayStatuses(ctx.Context(), list)
	if err != nil {
		return err
	}

	ctx.Printf("Habits for %s\n", ctx.Habits.Today())
	done := 0
	for _, h := range list {
		status := statuses[h.ID]
		if status == models.Done {
			done++
		}
		ctx.Printf("  %s %s\n", statusMark(status), h.Name)
	}
	ctx.Printf("%d/%d done\n", done, len(list))
	return nil
}

func statusMark(s models.LogStatus) string {
	switch s {
	case models.Done:
		return "✓"
	case models.Skipped:
		return "✗"
	default:
		return "○"
	}
}

type HabitArchiveCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
}

func (c *HabitArchiveCmd) Run(ctx *Context) error {
	habit, err := ctx.ResolveHabit(c.Habit)
	if err != nil {
		return err
	}
	if err := ctx.Habits.Archive(ctx.Context(), habit.ID); err != nil {
		return err
	}
	ctx.Printf("Archived habit: %s\n", habit.Name)
	return nil
}
