// Package prompt reads secrets for the command line tools.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var (
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword

	ErrEmptyPassword = errors.New("missing password from stdin")
)

// Password reads one password from in. Terminals get a prompt on out and
// no echo, anything else is read as a single line so passwords can be
// piped in.
func Password(in *os.File, out io.Writer, label string) (string, error) {
	if isTerminal(int(in.Fd())) {
		fmt.Fprintf(out, "%v: ", label)
		buf, err := readPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		if len(buf) == 0 {
			return "", ErrEmptyPassword
		}
		return string(buf), nil
	}
	return Line(in)
}

// Line reads the first line of r. Only the line terminator is removed,
// spaces are part of the password.
func Line(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if sc.Err() != nil {
			return "", sc.Err()
		}
		return "", ErrEmptyPassword
	}
	password := strings.TrimRight(sc.Text(), "\r")
	if len(password) == 0 {
		return "", ErrEmptyPassword
	}
	return password, nil
}
