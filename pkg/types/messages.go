package types

// Client -> Server
// enter-room:
//   display_name: string
//   room_id: string
//
// leave-room: {}
//
// chat-message:
//   text: string
//
// phase-change:
//   phase: "lobby" | "typing"
//   passage: string // set when phase is "typing"
//
// performance-snapshot:
//   wpm: number

// Server -> Client
// membership-update:
//   members: string[] // full replacement, join order
//
// chat-message | phase-change | performance-snapshot:
//   same payload as the client sent, display_name stamped by the server
//
// error:
//   error: string

const (
	TypeEnterRoom   = "enter-room"
	TypeLeaveRoom   = "leave-room"
	TypeMembership  = "membership-update"
	TypeChat        = "chat-message"
	TypePhaseChange = "phase-change"
	TypePerformance = "performance-snapshot"
	TypeError       = "error"
)

const (
	PhaseLobby  = "lobby"
	PhaseTyping = "typing"
)

type ClientMessage struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name,omitempty"`
	RoomID      string `json:"room_id,omitempty"`
	Text        string `json:"text,omitempty"`
	Phase       string `json:"phase,omitempty"`
	Passage     string `json:"passage,omitempty"`
	WPM         int    `json:"wpm,omitempty"`
}

type ServerMessage struct {
	Type        string   `json:"type"`
	Members     []string `json:"members,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Text        string   `json:"text,omitempty"`
	Phase       string   `json:"phase,omitempty"`
	Passage     string   `json:"passage,omitempty"`
	WPM         int      `json:"wpm,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Relayable reports whether a client message is forwarded to the rest of the room.
func (m ClientMessage) Relayable() bool {
	switch m.Type {
	case TypeChat, TypePhaseChange, TypePerformance:
		return true
	default:
		return false
	}
}

// Stamp turns a relayed client message into what the other members receive.
func (m ClientMessage) Stamp(displayName string) ServerMessage {
	return ServerMessage{
		Type:        m.Type,
		DisplayName: displayName,
		Text:        m.Text,
		Phase:       m.Phase,
		Passage:     m.Passage,
		WPM:         m.WPM,
	}
}

func ErrorMessage(msg string) ServerMessage {
	return ServerMessage{Type: TypeError, Error: msg}
}
