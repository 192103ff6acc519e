package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agritrace/agritrace-backend/internal/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAppError maps a service error to its HTTP status and code.
func RespondAppError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	if code == "" {
		code = apperr.CodePersistenceFailure
	}
	RespondError(c, apperr.StatusOf(err), code, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
