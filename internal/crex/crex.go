// Package crex wraps errors under package-level sentinels.
//
// Every package in bootpack declares its failure classes as sentinel errors
// in errors.go. Underlying causes are attached with [Wrap] or [Wrapf] so that
// callers can match either the class or the cause with [errors.Is].
//
//	if err := ctr.Stop(ctx); err != nil {
//	    return crex.Wrap(runtime.ErrRuntime, err)
//	}
package crex

import (
	"errors"
	"fmt"
)

// Attaches err to the sentinel class.
//
// Returns nil when err is nil. When err already matches class, it is returned
// unchanged so repeated wrapping does not stutter.
func Wrap(class, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, class) {
		return err
	}
	return fmt.Errorf("%w: %w", class, err)
}

// Attaches a formatted cause to the sentinel class.
//
// The format may itself contain %w verbs; every wrapped error stays reachable
// through [errors.Is].
func Wrapf(class error, format string, args ...any) error {
	return fmt.Errorf("%w: %w", class, fmt.Errorf(format, args...))
}
