package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eclipselink/handoff-backend/internal/models"
	"github.com/eclipselink/handoff-backend/internal/services"
	"github.com/eclipselink/handoff-backend/internal/utils"
)

type PatientHandler struct {
	svc services.PatientService
}

func NewPatientHandler(svc services.PatientService) *PatientHandler {
	return &PatientHandler{svc: svc}
}

// POST /v1/patients
func (h *PatientHandler) Create(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	var p models.Patient
	if err := c.ShouldBindJSON(&p); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "PatientHandler.Create", "invalid request body", err))
		return
	}

	out, err := h.svc.Create(c.Request.Context(), &p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// GET /v1/patients/:patient_id
func (h *PatientHandler) Get(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	out, err := h.svc.Get(c.Request.Context(), c.Param("patient_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
