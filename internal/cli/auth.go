package cli

import (
	"strings"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/models"
)

type SignUpCmd struct {
	Email    string `arg:"" help:"Email address."`
	Name     string `help:"Display name." short:"n"`
	Password string `help:"Password (prompted when omitted)." env:"HABITUAL_PASSWORD"`
}

func (c *SignUpCmd) Run(ctx *Context) error {
	name, err := ctx.ask(c.Name, "Full Name", false)
	if err != nil {
		return err
	}
	password, err := ctx.ask(c.Password, "Password", true)
	if err != nil {
		return err
	}

	metadata := models.EncodeMetadata(models.UserMetadata{Name: strings.TrimSpace(name)})
	resp, err := ctx.Session.SignUp(ctx.Context(), strings.TrimSpace(c.Email), password, metadata)
	if err != nil {
		return err
	}
	if resp.Session == nil {
		ctx.Printf("%s\n", constants.MsgCheckEmail)
		return nil
	}
	ctx.Printf("%s\n", constants.MsgSignedIn)
	return nil
}

type SignInCmd struct {
	Email    string `arg:"" help:"Email address."`
	Password string `help:"Password (prompted when omitted)." env:"HABITUAL_PASSWORD"`
}

func (c *SignInCmd) Run(ctx *Context) error {
	password, err := ctx.ask(c.Password, "Password", true)
	if err != nil {
		return err
	}
	resp, err := ctx.Session.SignIn(ctx.Context(), strings.TrimSpace(c.Email), password)
	if err != nil {
		return err
	}
	if resp.Session == nil {
		ctx.Printf("%s\n", constants.MsgCheckEmail)
		return nil
	}
	ctx.Printf("%s\n", constants.MsgSignedIn)
	ctx.Printf("Welcome back, %s!\n", resp.Session.User.DisplayName())
	return nil
}

type SignOutCmd struct{}

func (c *SignOutCmd) Run(ctx *Context) error {
	if !ctx.Session.State().SignedIn() {
		ctx.Printf("Not signed in.\n")
		return nil
	}
	if err := ctx.Session.SignOut(ctx.Context()); err != nil {
		return err
	}
	ctx.Printf("%s\n", constants.MsgSignedOut)
	return nil
}

type WhoAmICmd struct{}

func (c *WhoAmICmd) Run(ctx *Context) error {
	s, err := ctx.Session.CurrentSession(ctx.Context())
	if err != nil {
		return err
	}
	u := s.User
	ctx.Printf("Name:    %s\n", u.DisplayName())
	ctx.Printf("Email:   %s\n", u.Email)
	ctx.Printf("User ID: %s\n", u.ID)
	if !s.ExpiresAt.IsZero() {
		ctx.Printf("Session: expires %s\n", s.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
