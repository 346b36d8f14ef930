package errors

import "context"

// Tag keys attached to tracked pipeline failures. Tag values must never carry
// patient identifiers.
const (
	TagComponent    = "component"
	TagStage        = "stage"
	TagModelVersion = "model_version"
)

// Tracker reports pipeline failures to an external service such as Sentry
type Tracker interface {
	// CaptureError reports a failure; level is derived from the error with LevelFor
	CaptureError(ctx context.Context, err error, tags map[string]string) error

	CaptureMessage(ctx context.Context, message string, level Level, tags map[string]string) error

	// AddBreadcrumb records a step (preprocess, score, persist) ahead of a failure
	AddBreadcrumb(ctx context.Context, message string, category string, level Level, data map[string]interface{})

	// Flush blocks until queued events are delivered or ctx ends
	Flush(ctx context.Context) error
}

// StageTags builds the tag set for a failure in one stage of a component
func StageTags(component, stage string) map[string]string {
	tags := map[string]string{TagComponent: component}
	if stage != "" {
		tags[TagStage] = stage
	}
	return tags
}

// Level is the severity reported to the tracker
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

func (l Level) String() string {
	return string(l)
}

// LevelFor grades a pipeline error. Rejected input is a warning about the
// data, a missing model is fatal for scoring, anything else is an error.
func LevelFor(err error) Level {
	switch {
	case err == nil:
		return LevelInfo
	case Is(err, ErrModelNotLoaded):
		return LevelFatal
	case Is(err, ErrDataValidation), Is(err, ErrShapeMismatch), Is(err, ErrInvalidInput):
		return LevelWarning
	}
	return LevelError
}
