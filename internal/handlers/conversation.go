package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/omnigatehq/omnigate/internal/conversation"
	"github.com/omnigatehq/omnigate/internal/message"
)

type setModeRequest struct {
	Mode string `json:"mode" validate:"required"`
}

// SetConversationMode handles PUT /conversations/:id/mode. The raw mode is
// parsed against the closed enum before any storage access.
func (h *Handler) SetConversationMode(c echo.Context) error {
	var req setModeRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}
	mode, ok := conversation.ParseMode(req.Mode)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "mode must be \"agent\" or \"human\"")
	}
	conv, err := h.gateway.SetMode(c.Request().Context(), c.Param("id"), mode)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conv)
}

// GetConversation handles GET /conversations/:id.
func (h *Handler) GetConversation(c echo.Context) error {
	conv, err := h.conversations.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conv)
}

// ListConversationMessages handles GET /conversations/:id/messages.
func (h *Handler) ListConversationMessages(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
		limit = parsed
	}
	items, err := h.messages.ListByConversation(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []message.Message{}
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": items})
}
