package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eclipselink/handoff-backend/internal/services"
	"github.com/eclipselink/handoff-backend/internal/utils"
)

type VoiceHandler struct {
	voice  services.VoiceService
	status services.StatusService
}

func NewVoiceHandler(voice services.VoiceService, status services.StatusService) *VoiceHandler {
	return &VoiceHandler{voice: voice, status: status}
}

// Upload accepts a multipart form with the audio file plus handoff
// metadata and kicks off the pipeline.
//
// POST /v1/voice/upload
func (h *VoiceHandler) Upload(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	const op = "VoiceHandler.Upload"

	file, err := c.FormFile("audio")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "audio file is required", err))
		return
	}

	patientID := c.PostForm("patient_id")
	isInitial := c.PostForm("is_initial") == "true"
	language := c.PostForm("language")

	var previousDocID *string
	if v := c.PostForm("previous_document_id"); v != "" {
		previousDocID = &v
	}

	f, err := file.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to read upload", err))
		return
	}
	defer f.Close()

	contentType := file.Header.Get("Content-Type")

	out, err := h.voice.Upload(c.Request.Context(), services.UploadRecordingInput{
		PatientID:          patientID,
		UploadedBy:         userID,
		IsInitial:          isInitial,
		PreviousDocumentID: previousDocID,
		Language:           language,
		ContentType:        contentType,
		Size:               file.Size,
		Audio:              f,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, out)
}

// Status reports pipeline progress for a handoff.
//
// GET /v1/handoffs/:handoff_id/status
func (h *VoiceHandler) Status(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	st, err := h.status.Get(c.Request.Context(), c.Param("handoff_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// RecordingStatus reports pipeline progress for a single recording,
// including the transcription text once it is available.
//
// GET /v1/voice/:recording_id/status
func (h *VoiceHandler) RecordingStatus(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	st, err := h.status.GetByRecording(c.Request.Context(), c.Param("recording_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Download returns a short-lived signed URL for the stored audio.
//
// GET /v1/voice/:recording_id/download
func (h *VoiceHandler) Download(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	url, err := h.voice.DownloadURL(c.Request.Context(), c.Param("recording_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
