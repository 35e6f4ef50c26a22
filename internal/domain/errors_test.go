package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"expired", fmt.Errorf("refresh: %w", ErrAuthExpired), KindAuthExpired},
		{"rejected", fmt.Errorf("%w: %w", ErrAuthRejected, ErrUnauthorized), KindAuthRejected},
		{"raw 401", ErrUnauthorized, KindAuthRejected},
		{"network", fmt.Errorf("get: %w", ErrNetwork), KindNetwork},
		{"deadline", context.DeadlineExceeded, KindNetwork},
		{"validation", &ValidationError{Field: "name", Reason: "required"}, KindValidation},
		{"not found", ErrNotFound, KindNotFound},
		{"dedup", ErrImportDedupSkip, KindDedupSkip},
		{"other", errors.New("boom"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestValidateName(t *testing.T) {
	err := ValidateName("   ")
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
	assert.ErrorIs(t, err, ErrValidation)

	assert.NoError(t, ValidateName("Jane"))
}

func TestSessionComplete(t *testing.T) {
	assert.True(t, Session{AccessToken: "a", RefreshToken: "r"}.Complete())
	assert.False(t, Session{AccessToken: "a"}.Complete())
	assert.False(t, Session{}.Complete())
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr("  "))
	require.NotNil(t, StringPtr(" x "))
	assert.Equal(t, "x", *StringPtr(" x "))
}
