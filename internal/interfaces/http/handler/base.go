package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/internal/infrastructure/logger"
	"github.com/erp/poscore/internal/interfaces/http/dto"
	"github.com/erp/poscore/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IfMatchHeader carries the caller's row_version on updates
const IfMatchHeader = "If-Match"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Page sends a paginated 200 response
func Page[T any](c *gin.Context, page shared.Paginated[T]) {
	c.JSON(http.StatusOK, dto.NewPageResponse(page))
}

// Error sends an error response with the status derived from code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 for input that could not be parsed
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// HandleError converts an error into a response. Domain errors keep their
// code and details; anything else is logged and reported as INTERNAL_ERROR.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := middleware.GetRequestID(c)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		if domainErr.Code == shared.CodeInternal {
			logger.L(c.Request.Context()).Error("Request failed", zap.Error(err))
		}
		c.JSON(dto.GetHTTPStatus(domainErr.Code), dto.NewDomainErrorResponse(domainErr, requestID))
		return
	}

	logger.L(c.Request.Context()).Error("Unhandled error",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(
		shared.CodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}

// BindJSON binds and validates the request body. It writes the error
// response itself and returns false on failure.
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.bindError(c, err)
		return false
	}
	return true
}

// BindQuery binds and validates query parameters
func (h *BaseHandler) BindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		h.bindError(c, err)
		return false
	}
	return true
}

func (h *BaseHandler) bindError(c *gin.Context, err error) {
	if details := middleware.ValidationDetails(err); details != nil {
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
			"Request validation failed",
			middleware.GetRequestID(c),
			details,
		))
		return
	}
	h.Error(c, shared.CodeValidation, "Invalid request body: "+err.Error())
}

// ParseUUID reads a UUID path parameter
func (h *BaseHandler) ParseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		h.Error(c, shared.CodeValidation, "Invalid "+param+" format")
		return uuid.Nil, false
	}
	return id, true
}

// Actor returns the authenticated actor. A route reached without one is
// answered with 401.
func (h *BaseHandler) Actor(c *gin.Context) (shared.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		h.Error(c, shared.CodeUnauthorized, "Authentication required")
		return shared.Actor{}, false
	}
	return actor, true
}

// ExpectedRowVersion resolves the concurrency token. The If-Match header
// wins over the body field; both may be absent.
func (h *BaseHandler) ExpectedRowVersion(c *gin.Context, fromBody *int64) (*int64, bool) {
	raw := strings.Trim(strings.TrimSpace(c.GetHeader(IfMatchHeader)), `"`)
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	if raw == "" {
		return fromBody, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		h.Error(c, shared.CodeValidation, "If-Match must carry a row_version")
		return nil, false
	}
	return &v, true
}
