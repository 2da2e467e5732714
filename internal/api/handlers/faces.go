package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/presence/internal/face"
	"github.com/your-org/presence/internal/observability"
	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/pkg/dto"
)

type FaceHandler struct {
	registry        *face.Registry
	photos          *storage.PhotoStore
	verifyThreshold float64
}

func NewFaceHandler(registry *face.Registry, photos *storage.PhotoStore, verifyThreshold float64) *FaceHandler {
	return &FaceHandler{registry: registry, photos: photos, verifyThreshold: verifyThreshold}
}

// Enroll accepts a multipart batch of photos and builds the identity's
// template. The batch is all-or-nothing; one bad photo rejects enrollment.
func (h *FaceHandler) Enroll(c *gin.Context) {
	identityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	files := form.File["photos"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photos required"})
		return
	}

	photos := make([][]byte, 0, len(files))
	for _, fh := range files {
		data, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read photo failed"})
			return
		}
		photos = append(photos, data)
	}

	tmpl, err := h.registry.Enroll(c.Request.Context(), identityID, photos)
	if err != nil {
		observability.Enrollments.WithLabelValues("rejected").Inc()
		writeError(c, err)
		return
	}
	observability.Enrollments.WithLabelValues("ok").Inc()
	observability.RegisteredTemplates.Inc()

	// Keep the source photos for audit; the template alone decides matches.
	for i, data := range photos {
		key := fmt.Sprintf("enroll/%s/%02d_%s.jpg", identityID, i+1, time.Now().Format("20060102_150405"))
		if err := h.photos.Put(c.Request.Context(), key, data, "image/jpeg"); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store photo failed"})
			return
		}
	}

	c.JSON(http.StatusCreated, templateResponse(tmpl))
}

func (h *FaceHandler) Get(c *gin.Context) {
	identityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	tmpl, err := h.registry.Get(c.Request.Context(), identityID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, templateResponse(tmpl))
}

func (h *FaceHandler) Delete(c *gin.Context) {
	identityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	if err := h.registry.Delete(c.Request.Context(), identityID); err != nil {
		writeError(c, err)
		return
	}
	observability.RegisteredTemplates.Dec()

	if err := h.photos.DeletePrefix(c.Request.Context(), "enroll/"+identityID.String()+"/"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete photos failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Verify scores an uploaded photo against the claimed identity's template
// using the registration-path threshold.
func (h *FaceHandler) Verify(c *gin.Context) {
	identityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	image, ok := formImage(c)
	if !ok {
		return
	}

	result, err := h.registry.Verify(c.Request.Context(), identityID, image, h.verifyThreshold)
	if err != nil {
		observability.Verifications.WithLabelValues("error").Inc()
		writeError(c, err)
		return
	}

	decision := "rejected"
	if result.Accepted {
		decision = "accepted"
	}
	observability.Verifications.WithLabelValues(decision).Inc()

	c.JSON(http.StatusOK, matchResponse(result))
}

// Identify scores an uploaded photo against every template.
func (h *FaceHandler) Identify(c *gin.Context) {
	image, ok := formImage(c)
	if !ok {
		return
	}

	result, err := h.registry.Identify(c.Request.Context(), image, h.verifyThreshold)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, matchResponse(result))
}

func (h *FaceHandler) Stats(c *gin.Context) {
	stats, err := h.registry.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.RegistrationStatsResponse{
		TotalRegistered:    stats.TotalRegistered,
		TotalVerifications: stats.TotalVerifications,
		VerifiedLast7Days:  stats.VerifiedLast7Days,
	})
}

// --- helpers shared with the attendance handler ---

func formImage(c *gin.Context) ([]byte, bool) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return nil, false
	}
	return data, true
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func templateResponse(tmpl *face.Template) dto.TemplateResponse {
	resp := dto.TemplateResponse{
		IdentityID:        tmpl.IdentityID,
		PhotoCount:        tmpl.PhotoCount,
		RegisteredAt:      tmpl.RegisteredAt.Format(time.RFC3339),
		VerificationCount: tmpl.VerificationCount,
	}
	if tmpl.LastVerifiedAt != nil {
		resp.LastVerifiedAt = tmpl.LastVerifiedAt.Format(time.RFC3339)
	}
	return resp
}

func matchResponse(result *face.MatchResult) dto.MatchResponse {
	return dto.MatchResponse{
		IdentityID: result.IdentityID,
		Similarity: result.Similarity,
		Accepted:   result.Accepted,
		Threshold:  result.Threshold,
	}
}
