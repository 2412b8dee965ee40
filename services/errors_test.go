package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("connection refused")

	assert.Equal(t, KindNotFound, KindOf(NotFound("session %s not found", "x")))
	assert.Equal(t, KindStorageFailure, KindOf(fmt.Errorf("wrapped: %w", StorageFailure("put failed", base))))
	assert.Equal(t, KindInfrastructure, KindOf(base))
	assert.True(t, IsKind(Validation("bad"), KindValidation))
	assert.False(t, IsKind(nil, KindValidation))
}

func TestErrorMessage(t *testing.T) {
	err := Validation("invalid results", "a", "b")
	assert.Equal(t, "invalid results: a; b", err.Error())

	wrapped := Infrastructure("db down", errors.New("timeout"))
	assert.Equal(t, "db down: timeout", wrapped.Error())
	assert.ErrorIs(t, wrapped, wrapped.Err)
}
