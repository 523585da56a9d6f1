// Package operator asks a human to perform a manual action during a test
// and waits for acknowledgement.
package operator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Confirmer blocks until the operator acknowledges prompt.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) error
}

// ErrNoInput is returned when the input closed before the operator answered.
var ErrNoInput = errors.New("operator: input closed before confirmation")

// Func adapts a function to Confirmer.
type Func func(ctx context.Context, prompt string) error

// Confirm implements Confirmer.
func (f Func) Confirm(ctx context.Context, prompt string) error {
	return f(ctx, prompt)
}

var promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))

// Console prompts on a terminal and waits for a line of input. There is no
// timeout, but a canceled context ends the wait. A read abandoned that way
// stays pending and its line answers the next prompt.
type Console struct {
	mu      sync.Mutex
	in      *bufio.Reader
	out     io.Writer
	pending chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// NewConsole creates a console confirmer.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

// Confirm implements Confirmer.
func (c *Console) Confirm(ctx context.Context, prompt string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.out, "%s ", promptStyle.Render(prompt)); err != nil {
		return fmt.Errorf("operator: write prompt: %w", err)
	}

	if c.pending == nil {
		ch := make(chan lineResult, 1)
		go func() {
			line, err := c.in.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
		c.pending = ch
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-c.pending:
		c.pending = nil
		switch {
		case errors.Is(r.err, io.EOF) && r.line == "":
			return ErrNoInput
		case r.err != nil && !errors.Is(r.err, io.EOF):
			return fmt.Errorf("operator: read: %w", r.err)
		}
		return nil
	}
}

// Auto acknowledges every prompt immediately. Hook, when set, runs first
// and its error is returned.
type Auto struct {
	Hook func(ctx context.Context, prompt string) error

	mu      sync.Mutex
	prompts []string
}

// Confirm implements Confirmer.
func (a *Auto) Confirm(ctx context.Context, prompt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	a.prompts = append(a.prompts, prompt)
	a.mu.Unlock()

	if a.Hook != nil {
		return a.Hook(ctx, prompt)
	}
	return nil
}

// Prompts returns the prompts seen so far.
func (a *Auto) Prompts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.prompts...)
}
