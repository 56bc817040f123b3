package handlers

import (
	"github.com/gin-gonic/gin"

	"safecircle/internal/middleware"
	"safecircle/internal/services"
	"safecircle/internal/utils"
	"safecircle/internal/validators"
)

type AlertHandler struct {
	alertService services.AlertService
}

func NewAlertHandler(alertService services.AlertService) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
	}
}

// Start opens an alert and invites its recipients
func (h *AlertHandler) Start(c *gin.Context) {
	var request validators.StartAlertRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "invalid request body")
		return
	}

	view, err := h.alertService.Start(c.Request.Context(), middleware.SenderSubject(c), &request)
	if err != nil {
		utils.WriteError(c, err)
		return
	}

	utils.CreatedResponse(c, view)
}

// Update records a location sample
func (h *AlertHandler) Update(c *gin.Context) {
	var request validators.UpdateAlertRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "invalid request body")
		return
	}

	result, err := h.alertService.Update(c.Request.Context(), middleware.SenderSubject(c), c.Param("id"), &request)
	if err != nil {
		utils.WriteError(c, err)
		return
	}

	utils.OKResponse(c, result)
}

func (h *AlertHandler) Extend(c *gin.Context) {
	var request validators.ExtendAlertRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, utils.ErrInvalidExtension)
		return
	}

	result, err := h.alertService.Extend(c.Request.Context(), middleware.SenderSubject(c), c.Param("id"), &request)
	if err != nil {
		utils.WriteError(c, err)
		return
	}

	utils.OKResponse(c, result)
}

func (h *AlertHandler) Stop(c *gin.Context) {
	alert, err := h.alertService.Stop(c.Request.Context(), middleware.SenderSubject(c), c.Param("id"))
	if err != nil {
		utils.WriteError(c, err)
		return
	}

	utils.OKResponse(c, gin.H{"status": alert.Status})
}

func (h *AlertHandler) Revoke(c *gin.Context) {
	if err := h.alertService.Revoke(c.Request.Context(), middleware.SenderSubject(c), c.Param("id")); err != nil {
		utils.WriteError(c, err)
		return
	}

	utils.OKResponse(c, gin.H{"revoked": true})
}

// Diag reports the live viewer counters of the alert
func (h *AlertHandler) Diag(c *gin.Context) {
	diag, err := h.alertService.Diag(c.Request.Context(), middleware.SenderSubject(c), c.Param("id"))
	if err != nil {
		utils.WriteError(c, err)
		return
	}

	utils.OKResponse(c, diag)
}
