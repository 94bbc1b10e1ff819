package system

import (
	"github.com/julianstephens/habitual/internal/cli"
)

type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" help:"Show the effective configuration." default:"1"`
}

type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run(ctx *cli.Context) error {
	for _, row := range ctx.Config.Redacted() {
		ctx.Printf("%-18s %s\n", row[0]+":", row[1])
	}
	return nil
}
