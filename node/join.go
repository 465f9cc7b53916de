package node

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// unit is a long-running part of the node.
type unit struct {
	name string
	run  func(ctx context.Context) error
}

// UnitError is returned by Run when one of the node units fails.
type UnitError struct {
	Unit string
	Err  error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%s: %v", e.Unit, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// UnitPanicError reports a unit that panicked.
type UnitPanicError struct {
	Unit  string
	Value any
	Stack []byte
}

func (e *UnitPanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Unit, e.Value)
}

// join runs every unit and waits for all of them. No unit is cancelled when another one ends:
// the units are expected to wind each other down. The first error, in completion order, is
// returned.
func join(ctx context.Context, logger zerolog.Logger, units ...unit) error {
	var g errgroup.Group
	for _, u := range units {
		g.Go(func() (err error) {
			start := time.Now()
			defer func() {
				if r := recover(); r != nil {
					err = &UnitPanicError{Unit: u.name, Value: r, Stack: debug.Stack()}
				}
				ev := logger.Info()
				if err != nil {
					ev = logger.Error().Err(err)
				}
				ev.Str("unit", u.name).Dur("uptime", time.Since(start)).Msg("unit stopped")
			}()

			if err := u.run(ctx); err != nil {
				return &UnitError{Unit: u.name, Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}
