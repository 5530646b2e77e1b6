package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// lineReader prompts on the error stream and reads answers from stdin.
// Secrets are read without echo when stdin is a terminal.
type lineReader struct {
	in     io.Reader
	prompt io.Writer
	buf    *bufio.Reader
}

func newLineReader(in io.Reader, prompt io.Writer) *lineReader {
	if in == nil {
		in = strings.NewReader("")
	}
	return &lineReader{in: in, prompt: prompt, buf: bufio.NewReader(in)}
}

func (l *lineReader) Line(label string) (string, error) {
	if label != "" {
		fmt.Fprintf(l.prompt, "%s: ", label)
	}
	line, err := l.buf.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", usageError{text: "missing input for " + strings.ToLower(label)}
		}
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (l *lineReader) Secret(label string) (string, error) {
	f, ok := l.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return l.Line(label)
	}
	fmt.Fprintf(l.prompt, "%s: ", label)
	raw, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(l.prompt)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return string(raw), nil
}

// valueOr returns current when set, otherwise asks for it.
func (l *lineReader) valueOr(current, label string, secret bool) (string, error) {
	if current != "" {
		return current, nil
	}
	if secret {
		return l.Secret(label)
	}
	return l.Line(label)
}
