package hub

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/DoyleJ11/type-rush-backend/internal/lobby"
	"github.com/DoyleJ11/type-rush-backend/pkg/types"
)

type HubMsg interface{ isHubMsg() }

// Join admits a client, creating the room on first use.
type Join struct {
	RoomID      string
	ClientID    string
	Participant types.Participant
	Outbox      chan types.ServerMessage
	Reply       chan *lobby.Lobby
}

type Leave struct {
	RoomID   string
	ClientID string
}

// Relay to a room that does not exist is a no-op.
type Relay struct {
	RoomID string
	From   string
	Msg    types.ClientMessage
}

type GetLobby struct {
	RoomID string
	Reply  chan *lobby.Lobby
}

type ListRooms struct {
	Reply chan []string
}

type ShutdownHub struct{}

func (Join) isHubMsg()        {}
func (Leave) isHubMsg()       {}
func (Relay) isHubMsg()       {}
func (GetLobby) isHubMsg()    {}
func (ListRooms) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

type room struct {
	lobby   *lobby.Lobby
	clients map[string]struct{}
}

type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(ctx context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(ctx)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Send delivers m unless the hub has stopped.
func (h *Hub) Send(m HubMsg) bool {
	select {
	case h.inbox <- m:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Join:
				r := h.rooms[msg.RoomID]
				if r == nil {
					r = &room{
						lobby:   lobby.NewLobby(h.ctx, msg.RoomID, h.log),
						clients: make(map[string]struct{}),
					}
					h.rooms[msg.RoomID] = r
					h.log.Info("room created", zap.String("room_id", msg.RoomID))
				}
				r.clients[msg.ClientID] = struct{}{}
				r.lobby.Send(lobby.Join{ClientID: msg.ClientID, Participant: msg.Participant, Outbox: msg.Outbox})
				msg.Reply <- r.lobby

			case Leave:
				r := h.rooms[msg.RoomID]
				if r == nil {
					break
				}
				if _, ok := r.clients[msg.ClientID]; !ok {
					break
				}
				delete(r.clients, msg.ClientID)
				r.lobby.Send(lobby.Leave{ClientID: msg.ClientID})

				if len(r.clients) == 0 {
					r.lobby.Send(lobby.Shutdown{})
					delete(h.rooms, msg.RoomID)
					h.log.Info("room discarded", zap.String("room_id", msg.RoomID))
				}

			case Relay:
				if r := h.rooms[msg.RoomID]; r != nil {
					r.lobby.Send(lobby.Relay{From: msg.From, Msg: msg.Msg})
				}

			case GetLobby:
				var lb *lobby.Lobby // May be nil
				if r := h.rooms[msg.RoomID]; r != nil {
					lb = r.lobby
				}
				msg.Reply <- lb

			case ListRooms:
				ids := make([]string, 0, len(h.rooms))
				for id := range h.rooms {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				msg.Reply <- ids

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, r := range h.rooms {
		r.lobby.Send(lobby.Shutdown{})
	}
	clear(h.rooms)
	h.cancel()
}
