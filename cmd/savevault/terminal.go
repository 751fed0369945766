// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/term"

	"github.com/holomush/savevault/internal/auth"
)

// termPrompter drives authentication over a line-oriented terminal.
// Passwords are read without echo when the input is a TTY.
type termPrompter struct {
	in           *bufio.Reader
	out          io.Writer
	readPassword func() ([]byte, error)
}

var _ auth.Prompter = (*termPrompter)(nil)

func newTermPrompter(in io.Reader, out io.Writer) *termPrompter {
	p := &termPrompter{in: bufio.NewReader(in), out: out}
	p.readPassword = p.readSecretLine
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		p.readPassword = func() ([]byte, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(p.out)
			if err != nil {
				return nil, oops.Code("TERMINAL_READ_FAILED").Wrap(err)
			}
			return b, nil
		}
	}
	return p
}

// readSecretLine is readLine for passwords: the line never becomes a string.
func (p *termPrompter) readSecretLine() ([]byte, error) {
	line, err := p.in.ReadBytes('\n')
	if err != nil && (!errors.Is(err, io.EOF) || len(line) == 0) {
		return nil, err
	}
	return bytes.TrimRight(line, "\r\n"), nil
}

// readLine returns the next line without its terminator. io.EOF is
// returned only when no input remains.
func (p *termPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func ask[T any](ctx context.Context, p *termPrompter, prompt string, read func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	fmt.Fprint(p.out, prompt)
	answer, err := read()
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(p.out)
		return zero, auth.ErrAbandoned
	}
	return answer, err
}

func (p *termPrompter) Username(ctx context.Context) (string, error) {
	return ask(ctx, p, "Username: ", p.readLine)
}

func (p *termPrompter) ConfirmRegistration(ctx context.Context, username string) (bool, error) {
	answer, err := ask(ctx, p, fmt.Sprintf("No account named %q. Create it? [y/N]: ", username), p.readLine)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (p *termPrompter) Password(ctx context.Context, purpose auth.PasswordPurpose) ([]byte, error) {
	prompt := "Password: "
	switch purpose {
	case auth.PasswordNew:
		prompt = "Choose a password: "
	case auth.PasswordConfirm:
		prompt = "Confirm password: "
	}
	return ask(ctx, p, prompt, p.readPassword)
}

func (p *termPrompter) Notify(_ context.Context, n auth.Notice) {
	switch n.Kind {
	case auth.NoticeInvalidInput:
		fmt.Fprintf(p.out, "Invalid input: %v\n", n.Err)
	case auth.NoticeNameTaken:
		fmt.Fprintf(p.out, "The name %q is already taken.\n", n.Username)
	case auth.NoticeWrongPassword:
		fmt.Fprintf(p.out, "Wrong password. %d attempt(s) remaining.\n", n.AttemptsRemaining)
	case auth.NoticeAccountCreated:
		fmt.Fprintf(p.out, "Account %q created.\n", n.Username)
	case auth.NoticeLoggedIn:
		fmt.Fprintf(p.out, "Welcome, %s.\n", n.Username)
	}
}
