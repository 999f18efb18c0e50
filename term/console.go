// Package term adapts the controller collaborators to a terminal session.
package term

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"smartvision/controller"
)

// Console reads user input line by line. End of input dismisses the
// prompt in progress and every later one.
type Console struct {
	out   io.Writer
	lines chan string
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{
		out:   out,
		lines: make(chan string),
	}
	go func() {
		defer close(c.lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			c.lines <- scanner.Text()
		}
	}()
	return c
}

// ReadLine shows prompt and waits for one line.
func (c *Console) ReadLine(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	select {
	case <-ctx.Done():
		fmt.Fprintln(c.out)
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			return "", controller.ErrCancelled
		}
		return strings.TrimRight(line, "\r"), nil
	}
}

// PromptText asks for one value. An empty line keeps initial.
func (c *Console) PromptText(ctx context.Context, title, initial string) (string, error) {
	prompt := title + ": "
	if initial != "" {
		prompt = fmt.Sprintf("%s [%s]: ", title, initial)
	}
	line, err := c.ReadLine(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) == "" {
		return initial, nil
	}
	return line, nil
}

func (c *Console) PromptFields(ctx context.Context, title string, fields []controller.Field) ([]string, error) {
	fmt.Fprintln(c.out, title)
	values := make([]string, 0, len(fields))
	for _, f := range fields {
		v, err := c.PromptText(ctx, "  "+f.Label, f.Value)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func (c *Console) Confirm(ctx context.Context, message string) (bool, error) {
	line, err := c.ReadLine(ctx, message+" [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
