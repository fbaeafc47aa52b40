package services

import (
	"context"
	"fmt"
	"time"

	"github.com/brightlane/insightforge/ent"
	"github.com/brightlane/insightforge/ent/user"
	"github.com/brightlane/insightforge/pkg/authn"
	"github.com/google/uuid"
)

// RegisterUserRequest is the input to UserService.Register.
type RegisterUserRequest struct {
	OrgID    string
	Email    string
	Password string
	Role     string
}

// UserService manages user accounts and credential verification.
type UserService struct {
	client *ent.Client
}

// NewUserService creates a new UserService.
func NewUserService(client *ent.Client) *UserService {
	return &UserService{client: client}
}

// Register creates a user under an org, hashing the password with bcrypt.
// The role defaults to member when the request leaves it empty.
func (s *UserService) Register(httpCtx context.Context, req RegisterUserRequest) (*ent.User, error) {
	if req.OrgID == "" {
		return nil, NewValidationError("org_id", "required")
	}
	if req.Email == "" {
		return nil, NewValidationError("email", "required")
	}
	if len(req.Password) < 8 {
		return nil, NewValidationError("password", "must be at least 8 characters")
	}

	role := req.Role
	if role == "" {
		role = string(user.RoleMember)
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	hash, err := authn.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u, err := s.client.User.Create().
		SetID(uuid.New().String()).
		SetOrgID(req.OrgID).
		SetEmail(req.Email).
		SetPasswordHash(hash).
		SetRole(user.Role(role)).
		Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	return u, nil
}

// Authenticate verifies an email/password pair and returns the matching user.
// Returns ErrInvalidCredentials for both an unknown email and a wrong
// password — never distinguish the two to a caller, to avoid email
// enumeration.
func (s *UserService) Authenticate(httpCtx context.Context, email, password string) (*ent.User, error) {
	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	u, err := s.client.User.Query().
		Where(user.EmailEQ(email)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if !authn.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// GetUser retrieves a user by ID, scoped to its org.
func (s *UserService) GetUser(ctx context.Context, orgID, userID string) (*ent.User, error) {
	u, err := s.client.User.Query().
		Where(user.IDEQ(userID), user.OrgIDEQ(orgID)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ListUsers lists every user belonging to an org.
func (s *UserService) ListUsers(ctx context.Context, orgID string) ([]*ent.User, error) {
	users, err := s.client.User.Query().
		Where(user.OrgIDEQ(orgID)).
		Order(ent.Asc(user.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
