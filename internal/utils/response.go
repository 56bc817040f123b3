package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type ErrorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func ErrorResponse(c *gin.Context, statusCode int, kind, detail string) {
	c.AbortWithStatusJSON(statusCode, ErrorBody{Error: kind, Detail: detail})
}

// WriteError renders err using its AppError kind. Dependency failures are
// reduced to a generic marker so no store detail leaks to the caller.
func WriteError(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		_ = c.Error(err)
		ErrorResponse(c, http.StatusInternalServerError, KindDependency, ErrInternalServer)
		return
	}
	if appErr.Kind == KindDependency {
		_ = c.Error(err)
		ErrorResponse(c, http.StatusInternalServerError, KindDependency, ErrInternalServer)
		return
	}
	ErrorResponse(c, appErr.StatusCode(), appErr.Kind, appErr.Detail)
}

func OKResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

func BadRequestResponse(c *gin.Context, detail string) {
	ErrorResponse(c, http.StatusBadRequest, KindValidation, detail)
}

func UnauthorizedResponse(c *gin.Context, detail string) {
	ErrorResponse(c, http.StatusUnauthorized, KindUnauthorized, detail)
}
