package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vcbatch/pkg/domain-errors"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewService("test-signing-key", "vcbatch-test")

	signed, err := svc.Generate("ops@example.com", "batches:write", time.Minute)
	require.NoError(t, err)

	claims, err := svc.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Operator)
	assert.Equal(t, "batches:write", claims.Scope)
	assert.Equal(t, "vcbatch-test", claims.Issuer)
}

func TestValidate_RejectsExpired(t *testing.T) {
	svc := NewService("test-signing-key", "vcbatch-test")

	signed, err := svc.Generate("ops@example.com", "batches:write", -time.Minute)
	require.NoError(t, err)

	_, err = svc.Validate(signed)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestValidate_RejectsWrongKey(t *testing.T) {
	svc := NewService("key-one", "vcbatch-test")
	other := NewService("key-two", "vcbatch-test")

	signed, err := svc.Generate("ops@example.com", "batches:read", time.Minute)
	require.NoError(t, err)

	_, err = other.Validate(signed)
	require.Error(t, err)
}

func TestValidate_RejectsGarbage(t *testing.T) {
	svc := NewService("test-signing-key", "vcbatch-test")
	_, err := svc.Validate("not.a.token")
	require.Error(t, err)
}
