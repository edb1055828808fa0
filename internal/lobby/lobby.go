package lobby

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/type-rush-backend/pkg/types"
)

type Msg interface{ isLobbyMsg() }

// Relay forwards Msg to every member except From. An empty From reaches everyone.
type Relay struct {
	From string
	Msg  types.ClientMessage
}

func (Relay) isLobbyMsg() {}

type Join struct {
	ClientID    string
	Participant types.Participant
	Outbox      chan types.ServerMessage // where this client wants to receive events
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	RoomID  string   `json:"room_id"`
	Members []string `json:"members"`
}

type member struct {
	clientID string
	name     string
	outbox   chan types.ServerMessage
}

type Lobby struct {
	roomID  string
	inbox   chan Msg
	members []member // join order
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewLobby(parent context.Context, roomID string, log *zap.Logger) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		roomID: roomID,
		inbox:  make(chan Msg, 64), // Small buffer
		log:    log.With(zap.String("room_id", roomID)),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				l.members = append(l.members, member{
					clientID: msg.ClientID,
					name:     msg.Participant.DisplayName,
					outbox:   msg.Outbox,
				})
				l.log.Info("member joined",
					zap.String("client_id", msg.ClientID),
					zap.String("display_name", msg.Participant.DisplayName),
					zap.Int("members", len(l.members)))
				l.broadcastMembership()

			case Leave:
				i := l.indexOf(msg.ClientID)
				if i < 0 {
					// Already dropped as a slow client.
					break
				}
				close(l.members[i].outbox)
				l.members = slices.Delete(l.members, i, i+1)
				l.log.Info("member left", zap.String("client_id", msg.ClientID), zap.Int("members", len(l.members)))
				l.broadcastMembership()

			case Relay:
				l.relay(msg)

			case GetState:
				msg.Reply <- l.view()

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) relay(msg Relay) {
	if !msg.Msg.Relayable() {
		return
	}

	name := "server"
	if msg.From != "" {
		i := l.indexOf(msg.From)
		if i < 0 {
			return
		}
		name = l.members[i].name
	}

	if dropped := l.send(msg.Msg.Stamp(name), msg.From); dropped {
		l.broadcastMembership()
	}
}

func (l *Lobby) broadcastMembership() {
	names := make([]string, len(l.members))
	for i, m := range l.members {
		names[i] = m.name
	}
	if dropped := l.send(types.MembershipUpdate(names), ""); dropped {
		l.broadcastMembership()
	}
}

// send delivers to every member but except and reports whether anyone was dropped.
func (l *Lobby) send(out types.ServerMessage, except string) bool {
	dropped := false
	kept := l.members[:0]
	for _, m := range l.members {
		if m.clientID == except {
			kept = append(kept, m)
			continue
		}
		select {
		case m.outbox <- out:
			kept = append(kept, m)
		default:
			// Client is slow/full - drop them.
			close(m.outbox)
			dropped = true
			l.log.Warn("dropping slow client", zap.String("client_id", m.clientID))
		}
	}
	clear(l.members[len(kept):])
	l.members = kept
	return dropped
}

func (l *Lobby) indexOf(clientID string) int {
	return slices.IndexFunc(l.members, func(m member) bool { return m.clientID == clientID })
}

func (l *Lobby) view() View {
	names := make([]string, len(l.members))
	for i, m := range l.members {
		names[i] = m.name
	}
	return View{RoomID: l.roomID, Members: names}
}

func (l *Lobby) shutdown() {
	for _, m := range l.members {
		close(m.outbox) // Tell client no more events
	}
	l.members = nil
	l.cancel()
}

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) RoomID() string { return l.roomID }

// Done is closed once the loop has exited and every outbox is closed.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// Send delivers m unless the lobby has already shut down.
func (l *Lobby) Send(m Msg) bool {
	select {
	case l.inbox <- m:
		return true
	case <-l.done:
		return false
	}
}
