package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/queryon/queryon/internal/errs"
)

func TestCheck_PlainKey(t *testing.T) {
	assert.NoError(t, Check("sk-admin-123", "sk-admin-123"))

	err := Check("sk-admin-123", "sk-admin-124")
	require.Error(t, err)
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
}

func TestCheck_BcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("gizli-anahtar"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, Check(string(hash), "gizli-anahtar"))
	assert.Error(t, Check(string(hash), "yanlis-anahtar"))
}

func TestCheck_MissingConfigurationDisablesAdmin(t *testing.T) {
	err := Check("", "anything")
	require.Error(t, err)
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
	assert.Contains(t, err.Error(), "disabled")
}

func TestCheck_MissingKey(t *testing.T) {
	assert.Error(t, Check("sk-admin-123", ""))
}
