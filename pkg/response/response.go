package response

import (
	"errors"
	"net/http"

	"anoa.com/homeworktracker/pkg/apperror"
	"anoa.com/homeworktracker/pkg/dto"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ResponseError standardized error response
func ResponseError(c *gin.Context, logger *logrus.Logger, err error) {
	code := apperror.MapErrorToStatus(err)

	// Log internal errors
	if code >= http.StatusInternalServerError && logger != nil {
		logger.WithFields(logrus.Fields{
			"path":   c.FullPath(),
			"method": c.Request.Method,
			"status": code,
		}).WithError(err).Error("request failed")
	}

	message := publicMessage(code, err)
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}

	c.JSON(code, dto.ErrorResponse{Error: message})
}

// publicMessage keeps server-side failure detail in the log only.
func publicMessage(code int, err error) string {
	switch {
	case code == http.StatusServiceUnavailable:
		return apperror.ErrStorageUnavailable.Error()
	case code >= http.StatusInternalServerError:
		return apperror.ErrInternal.Error()
	default:
		return err.Error()
	}
}
