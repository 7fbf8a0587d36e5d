package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/usermgmt/internal/accounts"
	"github.com/geocoder89/usermgmt/internal/authz"
	"github.com/geocoder89/usermgmt/internal/domain/user"
	"github.com/geocoder89/usermgmt/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get(middlewares.CtxRequestID)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

// RespondValidation reports every field problem at once.
func RespondValidation(ctx *gin.Context, fields []FieldError) {
	RespondError(ctx, http.StatusBadRequest, "validation_failed", "Validation failed.", gin.H{"fields": fields})
}

func RespondUnAuthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(ctx *gin.Context) {
	RespondError(ctx, http.StatusForbidden, "forbidden", "Access denied.", nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

// RespondServiceError maps account service errors to the HTTP taxonomy.
// Anything unrecognised is logged and reported as a generic 500.
func RespondServiceError(ctx *gin.Context, err error) {
	var verr *accounts.ValidationError

	switch {
	case errors.As(err, &verr):
		fields := make([]FieldError, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			fields = append(fields, FieldError{Field: f.Field, Rule: "policy", Message: f.Message})
		}
		RespondValidation(ctx, fields)

	case errors.Is(err, authz.ErrForbidden):
		RespondForbidden(ctx)

	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found.")

	case errors.Is(err, user.ErrDuplicate):
		RespondConflict(ctx, "duplicate", "Email or phone number already in use.")

	case errors.Is(err, accounts.ErrInvalidCredentials):
		RespondUnAuthorized(ctx, "invalid_credentials", "Invalid credentials.")

	case errors.Is(err, accounts.ErrInvalidRefresh):
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid or expired refresh token.")

	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "request failed",
			"route", ctx.FullPath(),
			"err", err,
		)
		RespondInternal(ctx, "Something went wrong.")
	}
}
