// ABOUTME: Interactive prompter for credential setup
// ABOUTME: Hides secret input when stdin is a terminal, otherwise reads plain lines

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/2389/plaza-telegram-bridge/internal/config"
)

// terminalPrompter asks on the terminal, falling back to line reads for piped input
type terminalPrompter struct {
	fd    int
	isTTY bool
	out   io.Writer
	lines *config.LinePrompter
}

func newTerminalPrompter(in *os.File, out io.Writer) *terminalPrompter {
	fd := int(in.Fd())
	return &terminalPrompter{
		fd:    fd,
		isTTY: term.IsTerminal(fd),
		out:   out,
		lines: config.NewLinePrompter(in, out),
	}
}

func (p *terminalPrompter) Prompt(label string, secret bool) (string, error) {
	green := color.New(color.FgGreen)
	green.Fprint(p.out, "    ▶ ")

	if !secret || !p.isTTY {
		return p.lines.Prompt(label, secret)
	}

	fmt.Fprintf(p.out, "%s: ", label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("reading hidden input: %w", err)
	}
	return string(b), nil
}
