package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/eclipselink/handoff-backend/internal/api/handlers"
	"github.com/eclipselink/handoff-backend/internal/api/middleware"
)

type Deps struct {
	Voice   *handlers.VoiceHandler
	SBAR    *handlers.SBARHandler
	Patient *handlers.PatientHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	v1 := r.Group("/v1")
	v1.Use(middleware.JWTAuth(), middleware.RequireClinician())

	v1.POST("/voice/upload", d.Voice.Upload)
	v1.GET("/voice/:recording_id/status", d.Voice.RecordingStatus)
	v1.GET("/voice/:recording_id/download", d.Voice.Download)
	v1.GET("/voice/:recording_id/transcript", d.SBAR.Transcript)

	v1.GET("/handoffs/:handoff_id/status", d.Voice.Status)
	v1.GET("/handoffs/:handoff_id/sbar", d.SBAR.ByHandoff)

	v1.POST("/patients", d.Patient.Create)
	v1.GET("/patients/:patient_id", d.Patient.Get)
	v1.GET("/patients/:patient_id/sbar/latest", d.SBAR.LatestForPatient)
	v1.GET("/patients/:patient_id/sbar/history", d.SBAR.History)
}
