package handlers

import (
	"net/http"

	"github.com/Staby-Guy/pidgeon/internal/utils"
)

type presignRequest struct {
	ContentType string `json:"contentType"`
}

// PresignAvatar godoc
// @Summary Get an upload URL for a profile picture
// @Description Upload the image with PUT to uploadUrl, then pass key as avatar on sign-up.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body presignRequest true "Image content type"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 503 {object} utils.Payload
// @Router /api/v1/auth/avatar/presign [post]
func (h *Handler) PresignAvatar(w http.ResponseWriter, r *http.Request) {
	var input presignRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	upload, err := h.Avatars.Presign(r.Context(), input.ContentType)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	respond(w, http.StatusOK, "Presigned URL generated", upload)
}
