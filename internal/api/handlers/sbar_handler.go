package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eclipselink/handoff-backend/internal/services"
)

type SBARHandler struct {
	svc services.SBARService
}

func NewSBARHandler(svc services.SBARService) *SBARHandler {
	return &SBARHandler{svc: svc}
}

// GET /v1/handoffs/:handoff_id/sbar
func (h *SBARHandler) ByHandoff(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	doc, err := h.svc.GetByHandoff(c.Request.Context(), c.Param("handoff_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GET /v1/patients/:patient_id/sbar/latest
func (h *SBARHandler) LatestForPatient(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	doc, err := h.svc.GetLatestForPatient(c.Request.Context(), c.Param("patient_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GET /v1/patients/:patient_id/sbar/history
func (h *SBARHandler) History(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	docs, err := h.svc.History(c.Request.Context(), c.Param("patient_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": docs})
}

// GET /v1/voice/:recording_id/transcript
func (h *SBARHandler) Transcript(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	t, err := h.svc.TranscriptForRecording(c.Request.Context(), c.Param("recording_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
