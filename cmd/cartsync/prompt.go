package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shashiranjanraj/cartsync/internal/checkout"
	"github.com/shashiranjanraj/cartsync/internal/payment"
)

// terminal asks the customer questions on in and out.
type terminal struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminal(in io.Reader, out io.Writer) *terminal {
	return &terminal{in: bufio.NewReader(in), out: out}
}

// readLine returns the next trimmed line, or ctx.Err() once ctx is done.
func (t *terminal) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := t.in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		ch <- result{strings.TrimSpace(line), err}
	}()
	select {
	case r := <-ch:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Confirm prints the summary and accepts "y" or "yes".
func (t *terminal) Confirm(ctx context.Context, s checkout.Summary) (bool, error) {
	fmt.Fprintf(t.out, "\n%s\n\nPlace this order? [y/N] ", s)
	answer, err := t.readLine(ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Authorize shows the payment page address and waits for the customer to
// come back. Typing "c" cancels.
func (t *terminal) Authorize(ctx context.Context, auth payment.Authorization) error {
	fmt.Fprintf(t.out, "\nComplete the payment at:\n  %s\n\nPress Enter when done, or type c to cancel: ", auth.URL)
	answer, err := t.readLine(ctx)
	if err != nil {
		return err
	}
	if strings.EqualFold(answer, "c") {
		return payment.ErrCancelled
	}
	return nil
}

var (
	_ checkout.Confirmer = (*terminal)(nil)
	_ payment.Authorizer = (*terminal)(nil)
)
