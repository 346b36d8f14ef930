package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"riskstrat/pkg/errors"
)

// scrubbedKeys never leave the process; patient data is protected health information
var scrubbedKeys = []string{"patient_id", "email", "DESYNPUF_ID", "EMAIL"}

// Tracker implements error tracking via Sentry
type Tracker struct {
	hub *sentry.Hub
}

// New creates a new Sentry tracker
func New(dsn string, environment string, release string) (*Tracker, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:            dsn,
		Environment:    environment,
		Release:        release,
		SendDefaultPII: false,
		BeforeSend:     scrub,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init sentry")
	}

	return &Tracker{hub: sentry.CurrentHub()}, nil
}

func scrub(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	for _, k := range scrubbedKeys {
		delete(event.Tags, k)
		delete(event.Extra, k)
	}
	for _, b := range event.Breadcrumbs {
		for _, k := range scrubbedKeys {
			delete(b.Data, k)
		}
	}
	return event
}

// CaptureError sends an error to Sentry at the severity LevelFor assigns it
func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if version, ok := ctx.Value(ModelVersionKey).(string); ok {
			scope.SetTag(errors.TagModelVersion, version)
		}
		scope.SetLevel(convertLevel(errors.LevelFor(err)))
	})

	hub.CaptureException(err)
	return nil
}

// CaptureMessage sends a message to Sentry
func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		scope.SetLevel(convertLevel(level))
	})

	hub.CaptureMessage(message)
	return nil
}

// AddBreadcrumb records a pipeline step (preprocess, score, persist)
func (t *Tracker) AddBreadcrumb(ctx context.Context, message string, category string, level errors.Level, data map[string]interface{}) {
	t.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Message:  message,
		Category: category,
		Level:    convertLevel(level),
		Data:     data,
	}, &sentry.BreadcrumbHint{})
}

// Flush waits for all pending events to be sent
func (t *Tracker) Flush(ctx context.Context) error {
	timeout := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !sentry.Flush(timeout) {
		return errors.Wrap(errors.ErrUnavailable, "sentry flush timed out")
	}
	return nil
}

type contextKey string

// ModelVersionKey tags captured errors with the model set version in use
const ModelVersionKey contextKey = errors.TagModelVersion

// WithModelVersion attaches the scoring model version to ctx
func WithModelVersion(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, ModelVersionKey, version)
}

func convertLevel(level errors.Level) sentry.Level {
	switch level {
	case errors.LevelDebug:
		return sentry.LevelDebug
	case errors.LevelInfo:
		return sentry.LevelInfo
	case errors.LevelWarning:
		return sentry.LevelWarning
	case errors.LevelError:
		return sentry.LevelError
	case errors.LevelFatal:
		return sentry.LevelFatal
	default:
		return sentry.LevelInfo
	}
}
