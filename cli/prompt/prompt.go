// Package prompt asks the operator to confirm pipeline steps.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Levels.
const (
	// Strict requires typing the project name.
	Strict = "strict"
	// Light accepts y, yes or an empty answer.
	Light = "light"
)

// Prompter reads answers line by line from in.
type Prompter struct {
	level   string
	project string
	in      *bufio.Reader
	out     io.Writer
}

// New returns a Prompter for level. An unknown level is treated as
// Strict.
func New(level, project string, in io.Reader, out io.Writer) *Prompter {
	return &Prompter{level: level, project: project, in: bufio.NewReader(in), out: out}
}

// Confirm prints message with the level's hint and validates the answer.
// End of input counts as a refusal.
func (p *Prompter) Confirm(message string) (bool, error) {
	hint := "Enter project name"
	if p.level == Light {
		hint = "y/n"
	}
	if _, err := fmt.Fprintf(p.out, "%s [%s]: ", message, hint); err != nil {
		return false, err
	}

	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	if errors.Is(err, io.EOF) && line == "" {
		_, _ = fmt.Fprintln(p.out)
		return false, nil
	}
	return p.accept(strings.TrimSpace(line)), nil
}

func (p *Prompter) accept(resp string) bool {
	if p.level == Light {
		switch strings.ToLower(resp) {
		case "", "y", "yes":
			return true
		}
		return false
	}
	return resp != "" && strings.EqualFold(resp, p.project)
}

// Yes confirms everything without asking.
type Yes struct{}

// Confirm always returns true.
func (Yes) Confirm(string) (bool, error) { return true, nil }
