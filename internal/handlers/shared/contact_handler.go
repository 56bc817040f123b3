package handlers

import (
	"github.com/gin-gonic/gin"

	"safecircle/internal/middleware"
	"safecircle/internal/services"
	"safecircle/internal/utils"
	"safecircle/internal/validators"
)

type ContactHandler struct {
	contactService services.ContactService
}

func NewContactHandler(contactService services.ContactService) *ContactHandler {
	return &ContactHandler{
		contactService: contactService,
	}
}

func (h *ContactHandler) Add(c *gin.Context) {
	var request validators.ContactRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "invalid request body")
		return
	}

	contact, err := h.contactService.Add(c.Request.Context(), middleware.SenderSubject(c), &request)
	if err != nil {
		utils.WriteError(c, err)
		return
	}

	utils.CreatedResponse(c, contact)
}

func (h *ContactHandler) List(c *gin.Context) {
	contacts, err := h.contactService.List(c.Request.Context(), middleware.SenderSubject(c))
	if err != nil {
		utils.WriteError(c, err)
		return
	}

	utils.OKResponse(c, gin.H{"items": contacts})
}

// Verify consumes a verification token posted as JSON
func (h *ContactHandler) Verify(c *gin.Context) {
	var request validators.VerifyContactRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.Token == "" {
		utils.BadRequestResponse(c, "token is required")
		return
	}
	h.verify(c, request.Token)
}

// VerifyLink consumes the token embedded in an emailed link
func (h *ContactHandler) VerifyLink(c *gin.Context) {
	h.verify(c, c.Param("token"))
}

func (h *ContactHandler) verify(c *gin.Context, token string) {
	contact, err := h.contactService.Verify(c.Request.Context(), token)
	if err != nil {
		utils.WriteError(c, err)
		return
	}

	utils.OKResponse(c, gin.H{"verified": true, "email": contact.Email})
}
