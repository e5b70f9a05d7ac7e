package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("update pane: %w", NotFound("pane", "europe"))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.Equal(t, `update pane: pane "europe" not found`, wrapped.Error())

	fetchErr := fmt.Errorf("run: %w", &FetchError{Source: "Reuters", Err: errors.New("HTTP 503")})
	assert.True(t, IsFetch(fetchErr))
	assert.Equal(t, "run: fetch Reuters: HTTP 503", fetchErr.Error())

	assert.True(t, IsValidation(Validation("Invalid theme tag: %s", "FOO")))
	assert.Equal(t, "Invalid theme tag: FOO", Validation("Invalid theme tag: %s", "FOO").Error())
	assert.True(t, IsAuthorization(&AuthorizationError{Message: "no token"}))
	assert.True(t, IsConfiguration(&ConfigurationError{Setting: "JWT_SECRET", Reason: "required"}))
}
