package services

import (
	"context"
	"testing"

	testdb "github.com/brightlane/insightforge/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_RegisterAndAuthenticate(t *testing.T) {
	client := testdb.NewTestClient(t)
	orgSvc := NewOrgService(client.Client)
	userSvc := NewUserService(client.Client)
	ctx := context.Background()

	org, err := orgSvc.CreateOrg(ctx, CreateOrgRequest{Name: "acme"})
	require.NoError(t, err)

	u, err := userSvc.Register(ctx, RegisterUserRequest{
		OrgID:    org.ID,
		Email:    "owner@acme.test",
		Password: "correct horse battery staple",
	})
	require.NoError(t, err)
	assert.Equal(t, "member", string(u.Role))
	assert.NotEqual(t, "correct horse battery staple", u.PasswordHash)

	authenticated, err := userSvc.Authenticate(ctx, "owner@acme.test", "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, u.ID, authenticated.ID)

	_, err = userSvc.Authenticate(ctx, "owner@acme.test", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = userSvc.Authenticate(ctx, "nobody@acme.test", "whatever-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserService_Register_RejectsShortPassword(t *testing.T) {
	client := testdb.NewTestClient(t)
	orgSvc := NewOrgService(client.Client)
	userSvc := NewUserService(client.Client)
	ctx := context.Background()

	org, err := orgSvc.CreateOrg(ctx, CreateOrgRequest{Name: "acme"})
	require.NoError(t, err)

	_, err = userSvc.Register(ctx, RegisterUserRequest{OrgID: org.ID, Email: "a@b.test", Password: "short"})
	assert.True(t, IsValidationError(err))
}

func TestUserService_Register_RejectsDuplicateEmail(t *testing.T) {
	client := testdb.NewTestClient(t)
	orgSvc := NewOrgService(client.Client)
	userSvc := NewUserService(client.Client)
	ctx := context.Background()

	org, err := orgSvc.CreateOrg(ctx, CreateOrgRequest{Name: "acme"})
	require.NoError(t, err)

	_, err = userSvc.Register(ctx, RegisterUserRequest{OrgID: org.ID, Email: "dup@acme.test", Password: "longenoughpassword"})
	require.NoError(t, err)

	_, err = userSvc.Register(ctx, RegisterUserRequest{OrgID: org.ID, Email: "dup@acme.test", Password: "anotherlongpassword"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestUserService_ListUsers(t *testing.T) {
	client := testdb.NewTestClient(t)
	orgSvc := NewOrgService(client.Client)
	userSvc := NewUserService(client.Client)
	ctx := context.Background()

	org, err := orgSvc.CreateOrg(ctx, CreateOrgRequest{Name: "acme"})
	require.NoError(t, err)

	_, err = userSvc.Register(ctx, RegisterUserRequest{OrgID: org.ID, Email: "one@acme.test", Password: "longenoughpassword"})
	require.NoError(t, err)
	_, err = userSvc.Register(ctx, RegisterUserRequest{OrgID: org.ID, Email: "two@acme.test", Password: "longenoughpassword"})
	require.NoError(t, err)

	users, err := userSvc.ListUsers(ctx, org.ID)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
