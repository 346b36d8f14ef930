package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFor(t *testing.T) {
	assert.Equal(t, LevelInfo, LevelFor(nil))
	assert.Equal(t, LevelWarning, LevelFor(NewValidationError("BMI", "not coercible to a number", "x")))
	assert.Equal(t, LevelWarning, LevelFor(&ShapeError{Expected: 29, Got: 28, Position: -1}))
	assert.Equal(t, LevelWarning, LevelFor(Wrap(ErrInvalidInput, "nil record")))
	assert.Equal(t, LevelFatal, LevelFor(Wrap(ErrModelNotLoaded, "no artifact")))
	assert.Equal(t, LevelError, LevelFor(Wrap(ErrUnavailable, "kafka down")))
}

func TestStageTags(t *testing.T) {
	assert.Equal(t, map[string]string{TagComponent: "risk_service", TagStage: "persist"}, StageTags("risk_service", "persist"))
	assert.Equal(t, map[string]string{TagComponent: "logger"}, StageTags("logger", ""))
}
