package handlers

import (
	"github.com/gin-gonic/gin"

	"safecircle/internal/services"
	"safecircle/internal/utils"
	"safecircle/internal/validators"
	"safecircle/pkg/websocket"
)

// PublicHandler serves share token holders. The token is the credential.
type PublicHandler struct {
	alertService services.AlertService
	live         *websocket.Handler
}

func NewPublicHandler(alertService services.AlertService, live *websocket.Handler) *PublicHandler {
	return &PublicHandler{
		alertService: alertService,
		live:         live,
	}
}

func (h *PublicHandler) GetAlert(c *gin.Context) {
	view, err := h.alertService.PublicAlert(c.Request.Context(), c.Param("token"))
	if err != nil {
		utils.WriteError(c, err)
		return
	}

	utils.OKResponse(c, view)
}

func (h *PublicHandler) Locations(c *gin.Context) {
	var query validators.LocationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		// an unparseable query on a bad token is still a 401
		if _, _, authErr := h.alertService.AuthorizeViewer(c.Request.Context(), c.Param("token")); authErr != nil {
			utils.WriteError(c, authErr)
			return
		}
		utils.BadRequestResponse(c, "limit must be 1..500 and order asc or desc")
		return
	}

	items, err := h.alertService.Locations(c.Request.Context(), c.Param("token"), &query)
	if err != nil {
		utils.WriteError(c, err)
		return
	}

	utils.OKResponse(c, gin.H{"items": items})
}

func (h *PublicHandler) React(c *gin.Context) {
	var request validators.ReactRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		// token checks still run first; an empty preset then fails validation
		request = validators.ReactRequest{}
	}

	if err := h.alertService.React(c.Request.Context(), c.Param("token"), &request); err != nil {
		utils.WriteError(c, err)
		return
	}

	utils.OKResponse(c, gin.H{"ok": true})
}

// Stream relays the alert's live events as server-sent events.
func (h *PublicHandler) Stream(c *gin.Context) {
	_, alert, err := h.alertService.AuthorizeViewer(c.Request.Context(), c.Param("token"))
	if err != nil {
		utils.WriteError(c, err)
		return
	}

	h.live.ServeStream(c, alert.ID)
}

// WebSocket attaches a duplex viewer connection to the alert.
func (h *PublicHandler) WebSocket(c *gin.Context) {
	_, alert, err := h.alertService.AuthorizeViewer(c.Request.Context(), c.Param("token"))
	if err != nil {
		utils.WriteError(c, err)
		return
	}

	h.live.ServeWebSocket(c, alert.ID)
}
