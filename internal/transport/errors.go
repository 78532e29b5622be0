package transport

import (
	"context"
	"errors"
	"net/http"

	"github.com/ds124wfegd/busbooker/internal/entity"
	"github.com/ds124wfegd/busbooker/internal/transport/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError maps service errors to HTTP statuses. Anything unexpected is
// logged and answered with the generic fallback message.
func respondError(c *gin.Context, err error, fallback string) {
	if rejection, ok := entity.AsRejection(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": rejection.Message})
		return
	}

	switch {
	case errors.Is(err, entity.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
	case errors.Is(err, entity.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, context.DeadlineExceeded):
		logrus.WithField("request_id", middleware.GetRequestID(c)).Warnf("%s: %v", fallback, err)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request timed out"})
	default:
		logrus.WithFields(logrus.Fields{
			"request_id": middleware.GetRequestID(c),
			"path":       c.Request.URL.Path,
		}).Errorf("%s: %v", fallback, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
