package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFound_IsSentinel(t *testing.T) {
	err := fmt.Errorf("resolve agent: %w", NotFound("agent", "a-1"))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	assert.Equal(t, "agent not found", MessageOf(err))
}

func TestWrapRedis(t *testing.T) {
	assert.NoError(t, WrapRedis(nil))

	base := errors.New("connection refused")
	err := WrapRedis(base)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
	assert.Equal(t, RedisErrorMessage, MessageOf(err))
}

func TestStatusOf_PlainErrors(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
	assert.Equal(t, http.StatusNotFound, StatusOf(fmt.Errorf("x: %w", ErrNotFound)))
	assert.Equal(t, http.StatusBadRequest, StatusOf(Validation("message is required")))
	assert.Equal(t, SystemErrorMessage, MessageOf(errors.New("boom")))
}
