package api

import (
	"errors"
	"net/http"

	"github.com/brightlane/insightforge/pkg/authn"
	"github.com/brightlane/insightforge/pkg/services"
	"github.com/gin-gonic/gin"
)

// respondError classifies err into the error-kind table and writes the
// matching HTTP status and body. Unknown errors are treated as
// infrastructure failures: the client gets a generic message, the caller is
// expected to have already logged the detail.
func respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: verr.Message, Field: verr.Field})
		return
	}

	var qerr *services.QuotaError
	if errors.As(err, &qerr) {
		c.JSON(http.StatusPaymentRequired, ErrorResponse{
			Error:     "quota_exceeded",
			Used:      qerr.Used,
			Limit:     qerr.Limit,
			UpgradeTo: qerr.UpgradeSuggestion,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found"})
	case errors.Is(err, services.ErrAlreadyExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "already_exists"})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
	case errors.Is(err, services.ErrAgentNotAllowed), errors.Is(err, services.ErrExportNotAllowed):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not_allowed_on_plan"})
	case errors.Is(err, authn.ErrInvalidToken), errors.Is(err, authn.ErrExpiredToken), errors.Is(err, authn.ErrWrongType):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// bindJSON validates and decodes the request body, writing a 400
// invalid_input response and returning false if it fails.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_input", Field: err.Error()})
		return false
	}
	return true
}
