package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

var errNoInput = errors.New("no input")

// prompter reads interactive answers. One buffered reader is shared by all
// prompts so piped input spanning several lines is not lost between them.
type prompter struct {
	in  io.Reader
	br  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, br: bufio.NewReader(in), out: out}
}

// terminalFD returns the file descriptor of the input when it is an
// interactive terminal.
func (p *prompter) terminalFD() (int, bool) {
	f, ok := p.in.(*os.File)
	if !ok {
		return 0, false
	}

	fd := f.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return 0, false
	}

	return int(fd), true //nolint:gosec // G115: fd fits in int on supported platforms
}

// line prints label on a terminal and reads one line. The trailing newline
// is stripped.
func (p *prompter) line(label string) (string, error) {
	if _, ok := p.terminalFD(); ok {
		fmt.Fprint(p.out, label)
	}

	s, err := p.br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading input: %w", err)
	}

	if s == "" && errors.Is(err, io.EOF) {
		return "", errNoInput
	}

	return strings.TrimRight(s, "\r\n"), nil
}

// password reads a password without echo on a terminal and falls back to a
// plain line read otherwise (pipes, tests).
func (p *prompter) password() (string, error) {
	fd, ok := p.terminalFD()
	if !ok {
		return p.line("Password: ")
	}

	fmt.Fprint(p.out, "Password: ")

	b, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out)

	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return string(b), nil
}
