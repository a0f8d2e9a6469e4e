package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/minutemate/minutemate/pkg/logger"
)

func RespondOK(c *gin.Context, message string, data any) {
	RespondWithData(c, http.StatusOK, message, data)
}

func RespondCreated(c *gin.Context, message string, data any) {
	RespondWithData(c, http.StatusCreated, message, data)
}

// RespondWithData writes the standard {data, message} envelope.
func RespondWithData(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{
		"data":    data,
		"message": message,
	})
}

// RespondWithError writes the standard {error} envelope and aborts the chain.
func RespondWithError(c *gin.Context, status int, err error) {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		reqErr = NewRequestError(status, http.StatusText(status), err)
	}
	log := logger.FromContext(c.Request.Context())
	fields := []any{
		"status", status,
		"code", reqErr.Code,
		"path", c.Request.URL.Path,
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", fields...)
	} else {
		log.Warn("Request failed", fields...)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": reqErr.GetErrorInfo()})
}

func RespondWithServerError(c *gin.Context, code, message string, err error) {
	reqErr := NewRequestError(http.StatusInternalServerError, message, err)
	reqErr.Code = code
	RespondWithError(c, http.StatusInternalServerError, reqErr)
}
