package noop

import (
	"context"

	"riskstrat/pkg/errors"
)

// Tracker drops pipeline failures. Bootstrap falls back to it when no Sentry
// DSN is configured, and tests use it to satisfy riskservice.Deps.
type Tracker struct{}

func New() *Tracker { return &Tracker{} }

func (*Tracker) CaptureError(context.Context, error, map[string]string) error { return nil }

func (*Tracker) CaptureMessage(context.Context, string, errors.Level, map[string]string) error {
	return nil
}

func (*Tracker) AddBreadcrumb(context.Context, string, string, errors.Level, map[string]interface{}) {}

func (*Tracker) Flush(context.Context) error { return nil }

var _ errors.Tracker = (*Tracker)(nil)
