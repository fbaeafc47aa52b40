package authn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_VerifyRoundTrip(t *testing.T) {
	hash, err := HashPassword("Passw0rd!")
	require.NoError(t, err)
	assert.NotEqual(t, "Passw0rd!", hash)
	assert.True(t, VerifyPassword(hash, "Passw0rd!"))
	assert.False(t, VerifyPassword(hash, "wrong-password"))
}

func TestHashPassword_DifferentHashesEachTime(t *testing.T) {
	h1, err := HashPassword("Passw0rd!")
	require.NoError(t, err)
	h2, err := HashPassword("Passw0rd!")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
