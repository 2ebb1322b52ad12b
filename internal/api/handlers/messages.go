package handlers

import (
	"net/http"
	"strconv"

	"github.com/Staby-Guy/pidgeon/internal/api/services"
	"github.com/Staby-Guy/pidgeon/internal/apperrors"
	"github.com/Staby-Guy/pidgeon/internal/utils"
)

// GetMessages godoc
// @Summary Fetch a page of room messages
// @Description Returns messages in chronological order and clears the caller's unread count for the room.
// @Tags Messages
// @Produce json
// @Param roomId query string true "Room id"
// @Param limit query int false "Page size (default 50, max 200)"
// @Param before query int false "Only messages sent before this timestamp (ms)"
// @Param beforeId query string false "Id of the oldest message already held; pages past messages sharing the before timestamp"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 403 {object} utils.Payload
// @Router /api/v1/messages [get]
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		utils.ErrorResponse(w, apperrors.InvalidArg("limit must be a number"))
		return
	}
	before, err := intParam(q.Get("before"))
	if err != nil {
		utils.ErrorResponse(w, apperrors.InvalidArg("before must be a timestamp"))
		return
	}

	msgs, err := h.Messages.Fetch(r.Context(), c.UserID, q.Get("roomId"), int(limit), before, q.Get("beforeId"))
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	respond(w, http.StatusOK, "Messages fetched", map[string]any{"messages": msgs})
}

func intParam(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// SendMessage godoc
// @Summary Send a message to a contact
// @Tags Messages
// @Accept json
// @Produce json
// @Param body body services.SendInput true "Message"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 403 {object} utils.Payload
// @Router /api/v1/messages [post]
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.SendInput
	if !decodeJSON(w, r, &input) {
		return
	}

	msg, err := h.Messages.Send(r.Context(), c.Profile(), input)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	respond(w, http.StatusCreated, "Message sent", map[string]any{"message": msg})
}

// EditMessage godoc
// @Summary Edit one of your messages
// @Tags Messages
// @Accept json
// @Produce json
// @Param body body services.EditInput true "Edit"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 403 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/messages [patch]
func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.EditInput
	if !decodeJSON(w, r, &input) {
		return
	}

	msg, err := h.Messages.Edit(r.Context(), c.UserID, input)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	respond(w, http.StatusOK, "Message updated", map[string]any{"message": msg})
}

// DeleteMessage godoc
// @Summary Delete one of your messages
// @Tags Messages
// @Accept json
// @Produce json
// @Param body body services.DeleteInput true "Message key"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 403 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/messages [delete]
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var input services.DeleteInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if err := h.Messages.Delete(r.Context(), c.UserID, input); err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	respond(w, http.StatusOK, "Message deleted", nil)
}

// GetUnread godoc
// @Summary Unread counts per room
// @Tags Messages
// @Produce json
// @Success 200 {object} utils.Payload
// @Router /api/v1/unread [get]
func (h *Handler) GetUnread(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	counts, err := h.Messages.Unread(r.Context(), c.UserID)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	respond(w, http.StatusOK, "Unread counts fetched", map[string]any{"unread": counts})
}
