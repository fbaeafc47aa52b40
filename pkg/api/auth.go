package api

import (
	"net/http"
	"strings"

	"github.com/brightlane/insightforge/pkg/authn"
	"github.com/brightlane/insightforge/pkg/services"
	"github.com/gin-gonic/gin"
)

// handleRegister creates an organization and its first (owner) user in one
// call, then issues a token pair — there is no separate "create org" step
// on the public surface.
func (s *Server) handleRegister(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	if !passwordHasLetterAndDigit(req.Password) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_input", Field: "password must contain at least one letter and one digit"})
		return
	}

	ctx := c.Request.Context()

	org, err := s.orgSvc.CreateOrg(ctx, services.CreateOrgRequest{Name: req.OrgName})
	if err != nil {
		respondError(c, err)
		return
	}

	user, err := s.userSvc.Register(ctx, services.RegisterUserRequest{
		OrgID:    org.ID,
		Email:    strings.ToLower(req.Email),
		Password: req.Password,
		Role:     "owner",
	})
	if err != nil {
		respondError(c, err)
		return
	}

	pair, err := s.issuer.IssuePair(user.ID, org.ID, string(org.Plan))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, TokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// handleLogin authenticates an email/password pair and issues a fresh token
// pair carrying the user's current org and plan.
func (s *Server) handleLogin(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()

	user, err := s.userSvc.Authenticate(ctx, strings.ToLower(req.Email), req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	org, err := s.orgSvc.GetOrg(ctx, user.OrgID)
	if err != nil {
		respondError(c, err)
		return
	}

	pair, err := s.issuer.IssuePair(user.ID, org.ID, string(org.Plan))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, TokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// handleRefresh exchanges a still-valid refresh token for a fresh access
// token. Refresh tokens are not rotated: the same refresh token keeps
// working until it expires on its own TTL.
func (s *Server) handleRefresh(c *gin.Context) {
	var req RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	claims, err := s.issuer.Verify(req.RefreshToken, authn.TokenTypeRefresh)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	org, err := s.orgSvc.GetOrg(ctx, claims.OrgID)
	if err != nil {
		respondError(c, err)
		return
	}

	access, err := s.issuer.IssueAccessToken(claims.UserID, claims.OrgID, string(org.Plan))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, AccessTokenResponse{AccessToken: access})
}

// passwordHasLetterAndDigit enforces the register endpoint's password
// complexity rule beyond the bare min-length binding tag.
func passwordHasLetterAndDigit(password string) bool {
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}
