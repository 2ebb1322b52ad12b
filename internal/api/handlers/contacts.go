package handlers

import (
	"net/http"

	"github.com/Staby-Guy/pidgeon/internal/utils"
)

// ListContacts godoc
// @Summary List contacts with their latest message
// @Tags Contacts
// @Produce json
// @Success 200 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Router /api/v1/contacts [get]
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	contacts, err := h.Contacts.List(r.Context(), c.UserID)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	respond(w, http.StatusOK, "Contacts fetched", map[string]any{"contacts": contacts})
}

type addContactRequest struct {
	ContactID string `json:"contactId"`
}

// AddContact godoc
// @Summary Add a contact
// @Tags Contacts
// @Accept json
// @Produce json
// @Param body body addContactRequest true "Contact"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Failure 409 {object} utils.Payload
// @Router /api/v1/contacts [post]
func (h *Handler) AddContact(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var input addContactRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	contact, err := h.Contacts.Add(r.Context(), c.Profile(), input.ContactID)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	respond(w, http.StatusOK, "Contact added", map[string]any{"contact": contact})
}

// RemoveContact godoc
// @Summary Remove a contact
// @Tags Contacts
// @Produce json
// @Param contactId path string true "Contact user id"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/contacts/{contactId} [delete]
func (h *Handler) RemoveContact(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	if err := h.Contacts.Remove(r.Context(), c.UserID, r.PathValue("contactId")); err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	respond(w, http.StatusOK, "Contact removed", nil)
}

// SearchUsers godoc
// @Summary Find a user by exact username
// @Tags Users
// @Produce json
// @Param username query string true "Username"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/users/search [get]
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	users, err := h.Contacts.Search(r.Context(), c.UserID, r.URL.Query().Get("username"))
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	respond(w, http.StatusOK, "Search complete", map[string]any{"users": users})
}
