package api

import (
	"errors"
	"net/http"

	"dadchain/internal/badge"
	"dadchain/internal/chain"
	"dadchain/internal/ledger"
	"dadchain/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	CodeBadRequest     = "BAD_REQUEST"
	CodeInvalidAddress = "INVALID_ADDRESS"
	CodeMissingAccount = "MISSING_ACCOUNT"
	CodeRateLimited    = "RATE_LIMITED"
	CodeValidation     = "VALIDATION"
	CodeNotFound       = "NOT_FOUND"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeRuleViolation  = "RULE_VIOLATION"
	CodeInternal       = "INTERNAL"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg, Code: code})
}

// writeError maps a failed call onto an HTTP status. Reverts carry their
// reason to the client; anything else is logged and hidden.
func writeError(c *gin.Context, err error) {
	revert, ok := chain.AsRevert(err)
	if !ok {
		logger.Error("Request failed",
			logger.String("path", c.FullPath()),
			logger.Err(err),
		)
		abort(c, http.StatusInternalServerError, CodeInternal, "internal error")
		return
	}

	switch {
	case errors.Is(err, ledger.ErrJokeNotFound), errors.Is(err, badge.ErrNonexistentToken):
		abort(c, http.StatusNotFound, CodeNotFound, revert.Reason)
	case revert.Kind == chain.KindUnauthorized:
		abort(c, http.StatusForbidden, CodeUnauthorized, revert.Reason)
	case revert.Kind == chain.KindRule:
		abort(c, http.StatusConflict, CodeRuleViolation, revert.Reason)
	default:
		abort(c, http.StatusBadRequest, CodeValidation, revert.Reason)
	}
}
