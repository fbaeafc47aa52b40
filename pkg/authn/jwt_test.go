package authn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIssuer() *Issuer {
	return NewIssuer("a-signing-secret-at-least-32-bytes-long", 15*time.Minute, 30*24*time.Hour)
}

func TestIssuePair_AccessTokenVerifies(t *testing.T) {
	issuer := testIssuer()
	pair, err := issuer.IssuePair("user-1", "org-1", "pro")
	require.NoError(t, err)

	claims, err := issuer.Verify(pair.AccessToken, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "org-1", claims.OrgID)
	assert.Equal(t, "pro", claims.Plan)
}

func TestVerify_RejectsWrongType(t *testing.T) {
	issuer := testIssuer()
	pair, err := issuer.IssuePair("user-1", "org-1", "free")
	require.NoError(t, err)

	_, err = issuer.Verify(pair.AccessToken, TokenTypeRefresh)
	require.ErrorIs(t, err, ErrWrongType)
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer("a-signing-secret-at-least-32-bytes-long", -1*time.Minute, 30*24*time.Hour)
	pair, err := issuer.IssuePair("user-1", "org-1", "free")
	require.NoError(t, err)

	_, err = issuer.Verify(pair.AccessToken, TokenTypeAccess)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerify_RejectsTamperedSignature(t *testing.T) {
	issuer := testIssuer()
	otherIssuer := NewIssuer("a-different-signing-secret-of-32-bytes!", 15*time.Minute, 30*24*time.Hour)

	pair, err := issuer.IssuePair("user-1", "org-1", "free")
	require.NoError(t, err)

	_, err = otherIssuer.Verify(pair.AccessToken, TokenTypeAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueAccessToken_RefreshFlow(t *testing.T) {
	issuer := testIssuer()
	pair, err := issuer.IssuePair("user-1", "org-1", "enterprise")
	require.NoError(t, err)

	refreshClaims, err := issuer.Verify(pair.RefreshToken, TokenTypeRefresh)
	require.NoError(t, err)

	newAccess, err := issuer.IssueAccessToken(refreshClaims.UserID, refreshClaims.OrgID, refreshClaims.Plan)
	require.NoError(t, err)

	claims, err := issuer.Verify(newAccess, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}
