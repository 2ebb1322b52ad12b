package models

// Message is a single entry in a room log. ID, SenderID and Timestamp never
// change after creation; Timestamp is epoch millis and orders the room.
type Message struct {
	ID        string `json:"id"`
	SenderID  string `json:"senderId"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	IsEdited  bool   `json:"isEdited,omitempty"`
}

// Preview is the truncated latest message shown next to a contact.
type Preview struct {
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	IsOwn     bool   `json:"isOwn"`
}

const previewLength = 50

// PreviewFor builds the contact-list preview of m as seen by viewerID.
func PreviewFor(m *Message, viewerID string) *Preview {
	if m == nil {
		return nil
	}
	content := m.Content
	if r := []rune(content); len(r) > previewLength {
		content = string(r[:previewLength])
	}
	return &Preview{
		Content:   content,
		Timestamp: m.Timestamp,
		IsOwn:     m.SenderID == viewerID,
	}
}
