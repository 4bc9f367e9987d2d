package main

import (
	"context"
	"fmt"
	"log"

	"qroll/internal/models"
	"qroll/internal/services"
	"qroll/internal/storage"
)

// storedSignIn is the identity provider for commands that only restore a
// session. It never shows a page; a logout is remembered in storage so the
// next login skips Google's automatic account selection.
type storedSignIn struct {
	store *storage.SessionStore
}

func (storedSignIn) Load(ctx context.Context) error { return nil }

func (storedSignIn) RenderSignIn(ctx context.Context, onCredential func(string) error) error {
	return nil
}

func (s storedSignIn) DisableAutoSelect() {
	if err := s.store.MarkSignedOut(); err != nil {
		log.Printf("logout: %v", err)
	}
}

func (cli *commandLine) authController(idp services.IdentityProvider) *services.AuthController {
	auth := services.NewAuthController(cli.client, cli.store, idp, cli.notices)
	if cli.cfg.VerifyGoogleToken {
		auth.WithVerifier(services.GoogleVerifier{ClientID: cli.cfg.GoogleClientID})
	}
	return auth
}

func (cli *commandLine) restore(ctx context.Context) (*services.AuthController, services.AuthState) {
	auth := cli.authController(storedSignIn{store: cli.store})
	return auth, auth.Start(ctx)
}

// requireRole restores the session and checks it routes to want.
func (cli *commandLine) requireRole(ctx context.Context, want services.Destination) error {
	auth, state := cli.restore(ctx)
	switch state {
	case services.StateReady:
	case services.StateRolePending:
		return fmt.Errorf("choose a role first, run: qroll role teacher|student")
	default:
		return errNotSignedIn
	}

	if got := services.Route(auth.User()); got != want {
		return fmt.Errorf("this command is not available on the %s screen", got)
	}
	return nil
}

func (cli *commandLine) login(ctx context.Context) error {
	idp := cli.newSignIn()
	if err := idp.Load(ctx); err != nil {
		return fmt.Errorf("Google Sign-In unavailable: %w", err)
	}
	if cli.store.TakeSignedOut() {
		idp.DisableAutoSelect()
	}

	auth := cli.authController(idp)
	if auth.Start(ctx) == services.StateUnauthenticated {
		fmt.Fprintln(cli.out, auth.Status())
		if _, err := auth.Wait(ctx, services.StateReady, services.StateRolePending); err != nil {
			return err
		}
	}
	return cli.printUser(auth)
}

func (cli *commandLine) whoami(ctx context.Context) error {
	auth, _ := cli.restore(ctx)
	return cli.printUser(auth)
}

func (cli *commandLine) printUser(auth *services.AuthController) error {
	user := auth.User()
	if user == nil {
		return errNotSignedIn
	}

	role := string(user.Role)
	if role == "" {
		role = "no role"
	}
	fmt.Fprintf(cli.out, "%s <%s> (%s)\n", user.Name, user.Email, role)

	switch services.Route(user) {
	case services.DestinationRoleSelection:
		fmt.Fprintln(cli.out, "Choose a role: qroll role teacher|student")
	case services.DestinationTeacherHome:
		fmt.Fprintln(cli.out, "Start with: qroll classes")
	case services.DestinationStudentHome:
		fmt.Fprintln(cli.out, "Start with: qroll discover")
	}
	return nil
}

func (cli *commandLine) selectRole(ctx context.Context, arg string) error {
	role := models.ParseRole(arg)
	if !role.Valid() {
		fmt.Fprintln(cli.out, "Usage: role teacher|student")
		return errHelp
	}

	auth, state := cli.restore(ctx)
	switch state {
	case services.StateRolePending:
	case services.StateReady:
		return fmt.Errorf("role already set to %s", auth.User().Role)
	default:
		return errNotSignedIn
	}

	if err := auth.SelectRole(ctx, role); err != nil {
		return err
	}
	return cli.printUser(auth)
}

func (cli *commandLine) logout(ctx context.Context) error {
	auth, state := cli.restore(ctx)
	if state == services.StateUnauthenticated {
		return errNotSignedIn
	}
	return auth.Logout(ctx)
}
