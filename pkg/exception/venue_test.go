package exception

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassificationHelpers(t *testing.T) {
	transient := Transient(503, "unavailable")
	assert.Equal(t, 503, CodeOf(transient))
	assert.False(t, IsPermanent(transient))

	fatal := Fatal(418, "teapot")
	assert.Equal(t, 418, CodeOf(fatal))
	assert.True(t, IsPermanent(fatal))

	assert.Equal(t, 0, CodeOf(errors.New("plain")))
	assert.Equal(t, "", NameOf(errors.New("plain")))
}

func TestNotFoundMatchesSentinel(t *testing.T) {
	err := NotFound("order gone")
	assert.True(t, errors.Is(err, ErrOrderNotFound))
	assert.Equal(t, NameOrderNotFound, NameOf(err))
}

func TestInsufficientResourceCarriesOverrideAndSentinel(t *testing.T) {
	err := InsufficientResource("gas too high", 144, 5*time.Minute)
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.Equal(t, NameInsufficientFunds, NameOf(err))

	override := OverrideOf(err)
	if assert.NotNil(t, override) {
		assert.Equal(t, 144, *override.MaxAttempts)
		assert.Equal(t, 5*time.Minute, *override.BaseDelay)
		assert.False(t, *override.AttemptMultiplier)
	}
}
