package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/presence/internal/attendance"
	"github.com/your-org/presence/internal/face"
)

// writeError maps core errors onto HTTP statuses. Errors that carry data
// (low confidence, bad photo index) keep it in the response body.
func writeError(c *gin.Context, err error) {
	var photoErr *face.PhotoError
	var countErr *face.InvalidPhotoCountError
	var lowConf *face.LowConfidenceError

	switch {
	case errors.As(err, &countErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": countErr.Error()})
	case errors.As(err, &photoErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":       photoErr.Error(),
			"photo_index": photoErr.Index,
		})
	case errors.As(err, &lowConf):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      lowConf.Error(),
			"similarity": lowConf.Score,
			"threshold":  lowConf.Threshold,
		})
	case errors.Is(err, face.ErrNoFace), errors.Is(err, face.ErrMultipleFaces):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, face.ErrAlreadyRegistered):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, face.ErrNotRegistered):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrAlreadyCheckedIn):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrDayNotClosed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, face.ErrEncoderUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
