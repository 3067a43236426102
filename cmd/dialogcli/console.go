package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ibsar/voicedialog/pkg/menu"
)

var errNoHistory = errors.New("no previous location")

// console plays every collaborator of a supervisor on a terminal: speech is
// printed, recognition is implied by typed lines and navigation is a stack.
type console struct {
	mu      sync.Mutex
	out     io.Writer
	history []string
}

func newConsole(out io.Writer, start string) *console {
	return &console{out: out, history: []string{menu.CanonicalLocation(start)}}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) Start(context.Context, string) error {
	c.printf("[mic on]\n")
	return nil
}

func (c *console) Stop(context.Context) error {
	c.printf("[mic off]\n")
	return nil
}

func (c *console) Speak(ctx context.Context, text string) error {
	c.printf("<< %s\n", text)
	return ctx.Err()
}

func (c *console) GoTo(_ context.Context, location string) error {
	loc := menu.CanonicalLocation(location)
	c.mu.Lock()
	c.history = append(c.history, loc)
	c.mu.Unlock()
	c.printf("-> %s\n", loc)
	return nil
}

func (c *console) GoBack(context.Context) (string, error) {
	c.mu.Lock()
	if len(c.history) < 2 {
		c.mu.Unlock()
		return "", errNoHistory
	}
	c.history = c.history[:len(c.history)-1]
	loc := c.history[len(c.history)-1]
	c.mu.Unlock()
	c.printf("<- %s\n", loc)
	return loc, nil
}

func (c *console) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history[len(c.history)-1]
}

func (c *console) Focus(_ context.Context, field string) error {
	c.printf("[focus %s]\n", field)
	return nil
}

func (c *console) Submit(_ context.Context, form string) error {
	c.printf("[submit %s]\n", form)
	return nil
}

func (c *console) Open(_ context.Context, panel string) error {
	c.printf("[open %s]\n", panel)
	return nil
}
