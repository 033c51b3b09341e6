package httpapi

import (
	"encoding/base64"
	"net/http"

	"eventshare-engine/pkg/middleware"
	"eventshare-engine/services/quota"
	"eventshare-engine/services/reservation"
	"eventshare-engine/services/retention"
	"eventshare-engine/services/usage"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// Handler is the internal ops API consumed by the upload intake pipeline
// and the host-facing application. Large uploads themselves travel over
// the external pipeline, not this surface.
type Handler struct {
	usage        *usage.Service
	gate         *quota.Gate
	windows      *retention.WindowCalculator
	reservations *reservation.Service
}

type HandlerParams struct {
	fx.In
	Usage        *usage.Service
	Gate         *quota.Gate
	Windows      *retention.WindowCalculator
	Reservations *reservation.Service
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		usage:        p.Usage,
		gate:         p.Gate,
		windows:      p.Windows,
		reservations: p.Reservations,
	}
}

var Module = fx.Module("httpapi",
	fx.Provide(
		NewHandler,
		ProvideRouter,
	),
)

func ProvideRouter(h *Handler) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Error())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		v1.GET("/events/:event_id/usage", h.GetUsage)
		v1.GET("/events/:event_id/storage-window", h.GetStorageWindow)
		v1.POST("/events/:event_id/admission", h.CheckAdmission)
		v1.POST("/events/:event_id/reservations", h.CreateReservation)
		v1.POST("/events/:event_id/reservations/:reservation_id/claim", h.ClaimReservation)
	}

	return r
}

func (h *Handler) GetUsage(c *gin.Context) {
	breakdown, err := h.usage.Consumed(c.Request.Context(), c.Param("event_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"event_id":    c.Param("event_id"),
		"breakdown":   breakdown,
		"total_bytes": breakdown.Total().String(),
	})
}

func (h *Handler) GetStorageWindow(c *gin.Context) {
	ctx := c.Request.Context()
	eventID := c.Param("event_id")

	endsAt, err := h.windows.StorageEndsAt(ctx, eventID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	locked, err := h.windows.IsLocked(ctx, eventID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"event_id":        eventID,
		"storage_ends_at": endsAt,
		"locked":          locked,
	})
}

type admissionRequest struct {
	Bytes int64 `json:"bytes" binding:"min=0"`
}

func (h *Handler) CheckAdmission(c *gin.Context) {
	var req admissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}

	if err := h.gate.AssertUploadWithinLimit(c.Request.Context(), c.Param("event_id"), req.Bytes); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"admitted": true})
}

type createReservationRequest struct {
	Kind        string `json:"kind" binding:"required"`
	FileName    string `json:"file_name" binding:"required"`
	ContentType string `json:"content_type"`
	Data        string `json:"data" binding:"required"` // base64
	DurationSec *int   `json:"duration_sec"`
}

func (h *Handler) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "data must be base64"}})
		return
	}

	res, err := h.reservations.Create(c.Request.Context(), reservation.CreateInput{
		EventID:     c.Param("event_id"),
		Kind:        reservation.Kind(req.Kind),
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Data:        data,
		DurationSec: req.DurationSec,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

type claimReservationRequest struct {
	EntryID string `json:"entry_id"`
}

func (h *Handler) ClaimReservation(c *gin.Context) {
	var req claimReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}

	res, err := h.reservations.Claim(c.Request.Context(), c.Param("reservation_id"), c.Param("event_id"), req.EntryID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, res)
}
