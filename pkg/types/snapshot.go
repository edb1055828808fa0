package types

import (
	"errors"
	"strings"
)

var ErrMissingIdentity = errors.New("please enter both your name and a room ID")

// Participant is identified only by its self-declared display name.
// Names are not unique within a room.
type Participant struct {
	DisplayName string `json:"display_name"`
	RoomID      string `json:"room_id"`
}

// NewParticipant rejects blank names or rooms before anything is sent or joined.
func NewParticipant(displayName, roomID string) (Participant, error) {
	p := Participant{
		DisplayName: strings.TrimSpace(displayName),
		RoomID:      strings.TrimSpace(roomID),
	}
	if p.DisplayName == "" || p.RoomID == "" {
		return Participant{}, ErrMissingIdentity
	}
	return p, nil
}

// PerformanceSnapshot is the latest wpm of one participant, not a history.
type PerformanceSnapshot struct {
	DisplayName string `json:"display_name"`
	WPM         int    `json:"wpm"`
}

type ChatMessage struct {
	DisplayName string `json:"display_name"`
	Text        string `json:"text"`
}

func MembershipUpdate(members []string) ServerMessage {
	if members == nil {
		members = []string{}
	}
	return ServerMessage{Type: TypeMembership, Members: members}
}
