package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bedtime-server/internal/model"
)

// Коды ошибок в теле ответа, стабильная часть API-контракта.
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeActiveGeneration = "GENERATION_IN_PROGRESS"
	ErrCodeStoryNotReady    = "STORY_NOT_READY"
	ErrCodeSubscription     = "SUBSCRIPTION_REQUIRED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// ErrorResponse - стандартное тело ошибки API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var errResp ErrorResponse

	switch {
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrBadRequest):
		statusCode = http.StatusBadRequest
		errResp = ErrorResponse{Code: ErrCodeValidation, Message: err.Error()}
	case errors.Is(err, model.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		errResp = ErrorResponse{Code: ErrCodeUnauthorized, Message: "Authentication required"}
	case errors.Is(err, model.ErrForbidden):
		statusCode = http.StatusForbidden
		errResp = ErrorResponse{Code: ErrCodeForbidden, Message: "Access to this resource is forbidden"}
	case errors.Is(err, model.ErrStoryNotFound), errors.Is(err, model.ErrProfileNotFound), errors.Is(err, model.ErrNotFound):
		statusCode = http.StatusNotFound
		errResp = ErrorResponse{Code: ErrCodeNotFound, Message: err.Error()}
	case errors.Is(err, model.ErrUserHasActiveGeneration):
		statusCode = http.StatusConflict
		errResp = ErrorResponse{Code: ErrCodeActiveGeneration, Message: "A story is already being generated for this user"}
	case errors.Is(err, model.ErrStoryNotReadyYet):
		statusCode = http.StatusConflict
		errResp = ErrorResponse{Code: ErrCodeStoryNotReady, Message: "The story is not ready yet"}
	case errors.Is(err, model.ErrSubscriptionRequired):
		statusCode = http.StatusPaymentRequired
		errResp = ErrorResponse{Code: ErrCodeSubscription, Message: "An active subscription is required"}
	default:
		zap.L().Error("Unhandled internal error in handleServiceError", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResp = ErrorResponse{Code: ErrCodeInternal, Message: "An unexpected internal error occurred"}
	}

	c.AbortWithStatusJSON(statusCode, errResp)
}
