package models

import (
	"errors"
	"sort"
	"strings"
)

// RoomSeparator joins the two member ids of a room. User ids never contain it.
const RoomSeparator = "_"

var (
	ErrInvalidRoomID = errors.New("invalid room id")
	ErrInvalidUserID = errors.New("user id must be non-empty and must not contain the room separator")
)

// RoomID returns the deterministic id of the two-party room between a and b.
// RoomID(a, b) == RoomID(b, a).
func RoomID(a, b string) (string, error) {
	if !validMemberID(a) || !validMemberID(b) {
		return "", ErrInvalidUserID
	}
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, RoomSeparator), nil
}

// SplitRoomID decomposes a room id back into its two member ids. Only the
// canonical form produced by RoomID for two distinct users is accepted.
func SplitRoomID(roomID string) (string, string, error) {
	parts := strings.Split(roomID, RoomSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[0] >= parts[1] {
		return "", "", ErrInvalidRoomID
	}
	return parts[0], parts[1], nil
}

// IsRoomMember reports whether userID is one of the two members of roomID.
func IsRoomMember(roomID, userID string) bool {
	a, b, err := SplitRoomID(roomID)
	if err != nil {
		return false
	}
	return userID == a || userID == b
}

// OtherMember returns the member of roomID that is not userID.
func OtherMember(roomID, userID string) (string, error) {
	a, b, err := SplitRoomID(roomID)
	if err != nil {
		return "", err
	}
	switch userID {
	case a:
		return b, nil
	case b:
		return a, nil
	}
	return "", ErrInvalidRoomID
}

func validMemberID(id string) bool {
	return id != "" && !strings.Contains(id, RoomSeparator)
}
