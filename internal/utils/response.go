package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Error kinds reported in the "error" field of failure responses.
const (
	KindValidation = "ValidationError"
	KindConflict   = "ConflictError"
	KindAuth       = "AuthError"
	KindForbidden  = "ForbiddenError"
	KindNotFound   = "NotFoundError"
	KindUpstream   = "UpstreamError"
	KindInternal   = "InternalError"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// MessageResponse is the body of operations that only report an outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// Success sends a 200 response with body.
func Success(c *gin.Context, body interface{}) {
	c.JSON(http.StatusOK, body)
}

// Created sends a 201 response with body.
func Created(c *gin.Context, body interface{}) {
	c.JSON(http.StatusCreated, body)
}

// Message sends a 200 response carrying only a message.
func Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, MessageResponse{Message: message})
}

// Error sends a failure response and aborts the handler chain.
func Error(c *gin.Context, statusCode int, kind, message string) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Status:  statusCode,
		Message: message,
		Error:   kind,
	})
}

// BadRequest sends a 400 Bad Request error response.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, KindValidation, message)
}

// Conflict sends a 409 Conflict error response.
func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, KindConflict, message)
}

// Unauthorized sends a 401 Unauthorized error response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, KindAuth, message)
}

// Forbidden sends a 403 Forbidden error response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, KindForbidden, message)
}

// NotFound sends a 404 Not Found error response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, KindNotFound, message)
}

// BadGateway logs err and sends a 502 response.
func BadGateway(c *gin.Context, message string, err error) {
	zerolog.Ctx(c.Request.Context()).Warn().Err(err).Str("path", c.FullPath()).Msg("workflow engine call failed")
	Error(c, http.StatusBadGateway, KindUpstream, message)
}

// ServerError logs err and sends a 500 response. The cause never reaches the client.
func ServerError(c *gin.Context, message string, err error) {
	zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg(message)
	Error(c, http.StatusInternalServerError, KindInternal, message)
}
