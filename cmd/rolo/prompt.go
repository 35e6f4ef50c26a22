package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompter reads answers from stdin. Passwords are read without echo when
// stdin is a terminal.
type prompter struct {
	in     *bufio.Reader
	out    io.Writer
	stdin  *os.File
	hidden bool
}

func newPrompter() *prompter {
	return &prompter{
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stderr,
		stdin:  os.Stdin,
		hidden: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// line prompts for one line of input. A preset value skips the prompt.
func (p *prompter) line(label, preset string) (string, error) {
	if preset != "" {
		return preset, nil
	}
	fmt.Fprintf(p.out, "%s: ", label)
	input, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(input), nil
}

// password prompts for a secret
func (p *prompter) password(label string) (string, error) {
	if !p.hidden {
		return p.line(label, "")
	}

	fmt.Fprintf(p.out, "%s: ", label)
	secret, err := term.ReadPassword(int(p.stdin.Fd()))
	fmt.Fprintln(p.out) // Add newline after hidden input
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return string(secret), nil
}
