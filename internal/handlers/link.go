package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/vitalsync/vitalsync-backend/internal/pkg/errors"
	"github.com/vitalsync/vitalsync-backend/internal/requestdata"
	"github.com/vitalsync/vitalsync-backend/internal/services"
)

type LinkHandler struct {
	identityService services.IdentityService
}

func NewLinkHandler(identityService services.IdentityService) *LinkHandler {
	return &LinkHandler{identityService: identityService}
}

// Create is POST /api/links: bind a provider's external user id to the
// authenticated account so its deliveries start landing.
func (lh *LinkHandler) Create(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", apperrors.ErrUnauthorized)
		return
	}
	var req struct {
		Provider       string `json:"provider"`
		ExternalUserID string `json:"external_user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	link, err := lh.identityService.Link(c.Request.Context(), rd.UserID, req.Provider, req.ExternalUserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidArgument) {
			RespondError(c, http.StatusBadRequest, "invalid_argument", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "link_failed", err)
		return
	}
	RespondOK(c, link)
}

// List is GET /api/links.
func (lh *LinkHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", apperrors.ErrUnauthorized)
		return
	}
	links, err := lh.identityService.ListLinks(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"links": links})
}
