// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - Account commands: login, register, verify, resend, logout,
// whoami.
//
// Examples:
//   aila login -u ana                  Prompt for the password
//   aila register -u ana -e a@x.org    Create an account, then enter the code
//   aila register ... --no-verify      Create an account only
//   aila verify 123456 -u ana          Confirm the emailed code
//   aila resend -u ana -e a@x.org      Send a fresh code
//   aila whoami --json                 Identity in JSON format
//
// The session cookie is kept in storage.cookie_file (0600) so later
// commands stay signed in.

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jeranaias/aila/internal/api"
	"github.com/jeranaias/aila/internal/session"
)

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

func (a *App) runLogin(ctx context.Context) error {
	p := NewArgParser(a.args.Raw)
	username, err := a.valueOrPrompt(p.Flag("u", "username"), "Username: ")
	if err != nil {
		return err
	}
	if username == "" {
		return ErrMissingArgument("username", "aila login -u ana")
	}
	password := p.Flag("p", "password")
	if password == "" {
		if password, err = a.promptPassword("Password: "); err != nil {
			return err
		}
	}

	id, err := a.store.Login(ctx, username, password)
	if err != nil {
		return NewCommandError("login", "", "sign-in rejected", err)
	}
	a.success("Signed in as %s", id.Username)
	if id.NeedsVerification() {
		a.warn("account not verified yet (run 'aila verify')")
	}
	return nil
}

func (a *App) runLogout(ctx context.Context) error {
	if err := a.logout(ctx); err != nil {
		a.warn("%s", api.ErrorMessage(err))
	}
	a.success("Signed out")
	return nil
}

// logout ends the session on the service and forgets the stored cookie
// either way.
func (a *App) logout(ctx context.Context) error {
	err := a.store.Logout(ctx)
	if clearErr := a.jar.Clear(); clearErr != nil {
		a.log.WithError(clearErr).Warn("cli: could not remove cookie file")
	}
	return err
}

// =============================================================================
// REGISTRATION
// =============================================================================

func (a *App) runRegister(ctx context.Context) error {
	p := NewArgParser(a.args.Raw, "no-verify")
	username, err := a.valueOrPrompt(p.Flag("u", "username"), "Username: ")
	if err != nil {
		return err
	}
	email, err := a.valueOrPrompt(p.Flag("e", "email"), "Email: ")
	if err != nil {
		return err
	}
	if username == "" {
		return ErrMissingArgument("username", "aila register -u ana -e ana@example.org")
	}
	if !strings.Contains(email, "@") {
		return ErrInvalidFormat("email", email, "ana@example.org")
	}

	password := p.Flag("p", "password")
	if password == "" {
		if password, err = a.promptPassword("Password: "); err != nil {
			return err
		}
		confirm, err := a.promptPassword("Repeat password: ")
		if err != nil {
			return err
		}
		if confirm != password {
			return &ValidationError{Field: "password", Reason: "passwords do not match"}
		}
	}
	if password == "" {
		return ErrMissingArgument("password", "aila register -u ana -e ana@example.org")
	}

	if _, err := a.store.Register(ctx, username, password, email); err != nil {
		return NewCommandError("register", "", "account not created", err)
	}
	a.success("Account %s created; a verification code was sent to %s", username, email)

	if p.BoolFlag("no-verify") {
		a.info("Run 'aila verify CODE -u %s' within %s.", username, session.FormatCountdown(session.CodeValidity))
		return nil
	}
	return a.verifyLoop(ctx, username, email)
}

// verifyLoop asks for the emailed code until it is accepted. "r" sends a
// new code and restarts the countdown.
func (a *App) verifyLoop(ctx context.Context, username, email string) error {
	timer := session.NewCodeTimer(0)
	timer.Start()

	for {
		label := fmt.Sprintf("Code (%s left, r to resend): ", timer)
		if timer.Expired() {
			label = "Code expired; r to resend: "
		}
		code, err := a.promptLine(label)
		if err != nil {
			return NewCommandError("verify", "", "no code entered", err)
		}

		switch strings.ToLower(code) {
		case "":
			continue
		case "r", "resend":
			if err := a.store.ResendCode(ctx, username, email); err != nil {
				a.warn("resend failed: %s", api.ErrorMessage(err))
				continue
			}
			timer.Start()
			a.info("A new code was sent.")
			continue
		}

		err = a.store.Verify(ctx, username, code)
		if isRejectedCode(err) {
			a.warn("code rejected, try again")
			continue
		}
		if err != nil {
			return NewCommandError("verify", "", "verification failed", err)
		}
		a.success("Account verified")
		return nil
	}
}

// isRejectedCode reports whether err means "wrong code" rather than a
// broken call.
func isRejectedCode(err error) bool {
	return errors.Is(err, session.ErrInvalidCode) || api.StatusCode(err) == http.StatusBadRequest
}

func (a *App) runVerify(ctx context.Context) error {
	p := NewArgParser(a.args.Raw)
	username := p.Flag("u", "username")
	if username == "" {
		username = a.sessionUsername(ctx)
	}
	if username == "" {
		return ErrMissingArgument("username", "aila verify 123456 -u ana")
	}

	code := p.Positional(0)
	if code == "" {
		return a.verifyLoop(ctx, username, p.Flag("e", "email"))
	}
	if err := a.store.Verify(ctx, username, code); err != nil {
		if isRejectedCode(err) {
			return &ValidationError{Field: "code", Value: code, Reason: "rejected by the service"}
		}
		return NewCommandError("verify", "", "verification failed", err)
	}
	a.success("Account verified")
	return nil
}

func (a *App) runResend(ctx context.Context) error {
	p := NewArgParser(a.args.Raw)
	username := p.Flag("u", "username")
	if username == "" {
		username = a.sessionUsername(ctx)
	}
	if username == "" {
		return ErrMissingArgument("username", "aila resend -u ana -e ana@example.org")
	}
	if err := a.store.ResendCode(ctx, username, p.Flag("e", "email")); err != nil {
		return NewCommandError("resend", "", "no code sent", err)
	}
	a.success("A new verification code was sent (valid for %s)", session.FormatCountdown(session.CodeValidity))
	return nil
}

// sessionUsername returns the stored session's user, or "".
func (a *App) sessionUsername(ctx context.Context) string {
	if !a.store.IsAuthenticated() {
		if _, err := a.store.Probe(ctx); err != nil {
			return ""
		}
	}
	return a.store.Identity().Username
}

// =============================================================================
// WHOAMI
// =============================================================================

func (a *App) runWhoami(ctx context.Context) error {
	id, err := a.requireSession(ctx, "whoami", false)
	if err != nil {
		return err
	}
	if a.args.JSON {
		return NewJSONResponse("whoami", WhoamiData{
			Username: id.Username,
			Email:    id.Email,
			Verified: id.Verified,
			BaseURL:  a.client.BaseURL(),
		}).Print(a.Out)
	}
	a.printIdentity(a.Out, id)
	return nil
}
