package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/type-rush-backend/internal/hub"
	"github.com/DoyleJ11/type-rush-backend/internal/lobby"
	"github.com/DoyleJ11/type-rush-backend/pkg/types"
)

var ErrNotEnterRoom = errors.New("first message must be enter-room")

type Options struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	OutboxSize       int
	OriginPatterns   []string
}

func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      10 * time.Minute,
		WriteTimeout:     3 * time.Second,
		OutboxSize:       32,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = d.HandshakeTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = d.OutboxSize
	}
	return o
}

func Handler(h *hub.Hub, opts Options, log *zap.Logger) http.HandlerFunc {
	opts = opts.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		p, err := handshake(r.Context(), conn, opts.HandshakeTimeout)
		if err != nil {
			_ = wsjson.Write(r.Context(), conn, types.ErrorMessage(err.Error()))
			conn.Close(websocket.StatusPolicyViolation, err.Error())
			return
		}

		clientID := uuid.NewString()
		clog := log.With(zap.String("client_id", clientID), zap.String("room_id", p.RoomID))

		out := make(chan types.ServerMessage, opts.OutboxSize)
		reply := make(chan *lobby.Lobby, 1)
		if !h.Send(hub.Join{RoomID: p.RoomID, ClientID: clientID, Participant: p, Outbox: out, Reply: reply}) {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
		var lb *lobby.Lobby
		select {
		case lb = <-reply:
		case <-h.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-r.Context().Done():
			h.Send(hub.Leave{RoomID: p.RoomID, ClientID: clientID})
			return
		}
		defer h.Send(hub.Leave{RoomID: p.RoomID, ClientID: clientID})
		clog.Info("client entered room", zap.String("display_name", p.DisplayName))

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case msg, ok := <-out:
					if !ok {
						// Left or dropped by the lobby; unblock the reader.
						conn.Close(websocket.StatusNormalClosure, "removed from room")
						return
					}
					ctx, cancel := context.WithTimeout(writeCtx, opts.WriteTimeout)
					err := wsjson.Write(ctx, conn, msg)
					cancel()
					if err != nil {
						clog.Debug("write failed", zap.Error(err))
						conn.Close(websocket.StatusInternalError, "write failed")
						return
					}
				case <-writeCtx.Done():
					return
				}
			}
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), opts.ReadTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				// Treat clean close/going-away as normal:
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					clog.Info("client disconnected")
				default:
					clog.Info("client connection lost", zap.Error(err))
				}
				// Otherwise, just exit (hub.Leave in defer):
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}

			switch cm.Type {
			case types.TypeLeaveRoom:
				clog.Info("client left room")
				return
			case types.TypeEnterRoom:
				writeError(r.Context(), conn, "already in a room")
				continue
			case types.TypeChat:
				cm.Text = strings.TrimSpace(cm.Text)
				if cm.Text == "" {
					continue
				}
			}

			if !cm.Relayable() {
				writeError(r.Context(), conn, "unknown type")
				continue
			}
			if !lb.Send(lobby.Relay{From: clientID, Msg: cm}) {
				return
			}
		}
	}
}

func handshake(ctx context.Context, conn *websocket.Conn, timeout time.Duration) (types.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cm types.ClientMessage
	if err := wsjson.Read(ctx, conn, &cm); err != nil {
		return types.Participant{}, err
	}
	if cm.Type != types.TypeEnterRoom {
		return types.Participant{}, ErrNotEnterRoom
	}
	return types.NewParticipant(cm.DisplayName, cm.RoomID)
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	_ = wsjson.Write(ctx, conn, types.ErrorMessage(msg))
}
