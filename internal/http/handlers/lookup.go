package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oncall-dispatch/backend/internal/presenter"
	"github.com/oncall-dispatch/backend/internal/service"
)

type ChooseRequest struct {
	service.LookupRequest
	Choice *int `json:"choice" validate:"required,min=0,max=1"`
}

// @Summary Look up the on-call technician
// @Description Resolves a ticket location and date to the closest on-call market and its technician
// @Tags lookup
// @Accept json
// @Produce json
// @Param request body service.LookupRequest true "ticket location and date"
// @Success 200 {object} presenter.View
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Failure 412 {object} map[string]any
// @Failure 422 {object} map[string]any
// @Router /api/lookup [post]
func (h *Handler) LookupTicket(c *gin.Context) {
	var req service.LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if !h.validLookup(c, req, req) {
		return
	}
	out, err := h.Lookup.Lookup(c.Request.Context(), req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, presenter.Render(out))
}

// @Summary Pick one of the top two markets
// @Description Re-runs the lookup and swaps in the chosen alternate; confidence and warnings stay as rated
// @Tags lookup
// @Accept json
// @Produce json
// @Param request body ChooseRequest true "lookup request plus the alternate index"
// @Success 200 {object} presenter.View
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/lookup/choose [post]
func (h *Handler) ChooseAlternate(c *gin.Context) {
	var req ChooseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if !h.validLookup(c, req, req.LookupRequest) {
		return
	}
	out, err := h.Lookup.Choose(c.Request.Context(), req.LookupRequest, *req.Choice)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, presenter.Render(out))
}

// validLookup runs the struct tags of payload and checks that loc names a
// ZIP or a city.
func (h *Handler) validLookup(c *gin.Context, payload any, loc service.LookupRequest) bool {
	if err := h.Validator.Struct(payload); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return false
	}
	if strings.TrimSpace(loc.Zip) == "" && strings.TrimSpace(loc.City) == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Enter a ZIP or a city with state", nil)
		return false
	}
	return true
}
