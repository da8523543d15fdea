// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package domain holds the core types shared by every tierd component:
// the torrent descriptor, the orchestrator's queue/record shapes, location
// tags, and the tagged-error kinds every operation returns.
package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an Outcome so callers can decide whether to retry, skip,
// or abort without string-matching error messages.
type Kind int

const (
	// KindValidation covers malformed input rejected at a boundary (bad
	// hash, bad JSON, bad config). Never retried.
	KindValidation Kind = iota
	// KindTransient covers network/5xx failures against an external
	// collaborator. The surrounding mechanism retries these.
	KindTransient
	// KindSkip is a typed non-error outcome: the scheduler should move on
	// to the next candidate without treating this as a failure.
	KindSkip
	// KindFatal covers failures that must stop the operation (and, for
	// space reclamation, the whole pass) to avoid cascading damage.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindSkip:
		return "skip"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the tagged-error type every tierd operation returns instead of
// relying on panics or sentinel string matching. Reason is populated only
// for KindSkip and is one of the named skip conditions (e.g. "streaming",
// "no_links", "no_hdd_copy", "no_config").
type Outcome struct {
	Kind   Kind
	Reason string
	Err    error
}

func (o *Outcome) Error() string {
	if o.Reason != "" {
		return fmt.Sprintf("%s: %s", o.Kind, o.Reason)
	}
	if o.Err != nil {
		return fmt.Sprintf("%s: %v", o.Kind, o.Err)
	}
	return o.Kind.String()
}

func (o *Outcome) Unwrap() error {
	return o.Err
}

// Validation wraps err as a KindValidation Outcome.
func Validation(err error) *Outcome {
	return &Outcome{Kind: KindValidation, Err: err}
}

// Validationf builds a KindValidation Outcome from a format string.
func Validationf(format string, args ...any) *Outcome {
	return &Outcome{Kind: KindValidation, Err: fmt.Errorf(format, args...)}
}

// Transient wraps err as a KindTransient Outcome.
func Transient(err error) *Outcome {
	return &Outcome{Kind: KindTransient, Err: err}
}

// Skip builds a KindSkip Outcome carrying reason.
func Skip(reason string) *Outcome {
	return &Outcome{Kind: KindSkip, Reason: reason}
}

// Fatal wraps err as a KindFatal Outcome.
func Fatal(err error) *Outcome {
	return &Outcome{Kind: KindFatal, Err: err}
}

// Fatalf builds a KindFatal Outcome from a format string.
func Fatalf(format string, args ...any) *Outcome {
	return &Outcome{Kind: KindFatal, Err: fmt.Errorf(format, args...)}
}

// AsOutcome unwraps err into an *Outcome if it is (or wraps) one.
func AsOutcome(err error) (*Outcome, bool) {
	var o *Outcome
	if !errors.As(err, &o) {
		return nil, false
	}
	return o, true
}

// SkipReason returns (reason, true) if err is a KindSkip Outcome.
func SkipReason(err error) (string, bool) {
	o, ok := AsOutcome(err)
	if !ok || o.Kind != KindSkip {
		return "", false
	}
	return o.Reason, true
}
