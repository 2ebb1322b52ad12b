package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Staby-Guy/pidgeon/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sse"
)

// Stream godoc
// @Summary Subscribe to a realtime channel
// @Description Server-sent events. Each event is named after the envelope event and carries the envelope as data.
// @Tags Realtime
// @Produce text/event-stream
// @Param channel query string true "chat-<roomId> or user-<userId>"
// @Success 200 {string} string "event stream"
// @Failure 400 {object} utils.Payload
// @Failure 403 {object} utils.Payload
// @Router /api/v1/realtime [get]
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	channel := r.URL.Query().Get("channel")

	sub, err := h.Streams.Open(r.Context(), c.UserID, channel)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	defer sub.Close()

	rc := http.NewResponseController(w)
	// The server write timeout would otherwise cut the stream.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("Write deadline not adjustable", "err", err)
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprintf(w, ": subscribed %s\n\n", channel); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		log.Warn("Event stream not flushable", "err", err)
		return
	}
	log.Debug("Event stream opened", "userId", c.UserID, "channel", channel)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case env, ok := <-sub.C():
			if !ok {
				return
			}
			if err := sse.Encode(w, sse.Event{Event: env.Event, Data: env}); err != nil {
				log.Debug("Event stream write failed", "channel", channel, "err", err)
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
