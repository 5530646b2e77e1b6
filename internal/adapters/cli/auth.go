package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

func (r *Runner) login(ctx context.Context, args []string) error {
	fs := r.flagSet("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when empty)")
	if _, err := parse(fs, args); err != nil {
		return err
	}

	var err error
	if *email, err = r.in.valueOr(*email, "Email", false); err != nil {
		return err
	}
	if *password, err = r.in.valueOr(*password, "Password", true); err != nil {
		return err
	}
	if err := r.deps.Auth.Login(ctx, *email, *password); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Signed in as %s.\n", *email)
	return nil
}

func (r *Runner) signup(ctx context.Context, args []string) error {
	fs := r.flagSet("signup")
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password (prompted when empty)")
	confirm := fs.String("confirm", "", "password confirmation (prompted when empty)")
	if _, err := parse(fs, args); err != nil {
		return err
	}

	var err error
	if *name, err = r.in.valueOr(*name, "Name", false); err != nil {
		return err
	}
	if *email, err = r.in.valueOr(*email, "Email", false); err != nil {
		return err
	}
	if *password, err = r.in.valueOr(*password, "Password", true); err != nil {
		return err
	}
	if *confirm, err = r.in.valueOr(*confirm, "Confirm password", true); err != nil {
		return err
	}
	if err := r.deps.Auth.Signup(ctx, *name, *email, *password, *confirm); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Account created.")
	return nil
}

func (r *Runner) logout(ctx context.Context, _ []string) error {
	if err := r.deps.Auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Signed out.")
	return nil
}

func (r *Runner) whoami(ctx context.Context, _ []string) error {
	id, err := r.deps.Auth.Whoami(ctx)
	if err != nil {
		return err
	}
	if id.Name != "" {
		fmt.Fprintf(r.out, "Name:    %s\n", id.Name)
	}
	if id.Email != "" {
		fmt.Fprintf(r.out, "Email:   %s\n", id.Email)
	}
	if id.Subject != "" {
		fmt.Fprintf(r.out, "User ID: %s\n", id.Subject)
	}
	if !id.ExpiresAt.IsZero() {
		state := "expires"
		if id.Expired {
			state = "expired"
		}
		fmt.Fprintf(r.out, "Session: %s %s\n", state, humanize.RelTime(id.ExpiresAt, time.Now(), "ago", "from now"))
	}
	return nil
}
