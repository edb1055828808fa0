package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/DoyleJ11/type-rush-backend/internal/hub"
	"github.com/DoyleJ11/type-rush-backend/internal/lobby"
	"github.com/DoyleJ11/type-rush-backend/internal/passage"
	"github.com/DoyleJ11/type-rush-backend/pkg/types"
)

const (
	codeLen      = 6
	maxCodeTries = 16
	qrSize       = 320
	queryTimeout = 2 * time.Second
)

var (
	ErrHubStopped  = errors.New("hub stopped")
	ErrCodeSpace   = errors.New("no free room code")
	ErrRoomMissing = errors.New("room not found")
)

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, codeLen)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func lookup(ctx context.Context, h *hub.Hub, roomID string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if !h.Send(hub.GetLobby{RoomID: roomID, Reply: reply}) {
		return nil, ErrHubStopped
	}
	select {
	case lb := <-reply:
		return lb, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// CreateRoom reserves nothing: it only hands out a code no live room uses.
// The room is created when the first participant enters it.
func CreateRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
		defer cancel()

		for range maxCodeTries {
			code, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			lb, err := lookup(ctx, h, code)
			if err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			if lb == nil {
				writeJSON(w, http.StatusCreated, struct {
					Code string `json:"code"`
				}{Code: code})
				return
			}
			log.Debug("collision on room code, regenerating", zap.String("code", code))
		}
		http.Error(w, ErrCodeSpace.Error(), http.StatusServiceUnavailable)
	}
}

func GetRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
		defer cancel()

		lb, err := lookup(ctx, h, chi.URLParam(r, "roomID"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		if lb == nil {
			http.Error(w, ErrRoomMissing.Error(), http.StatusNotFound)
			return
		}

		reply := make(chan lobby.View, 1)
		if !lb.Send(lobby.GetState{Reply: reply}) {
			// emptied between the two queries
			http.Error(w, ErrRoomMissing.Error(), http.StatusNotFound)
			return
		}
		select {
		case v := <-reply:
			writeJSON(w, http.StatusOK, v)
		case <-lb.Done():
			http.Error(w, ErrRoomMissing.Error(), http.StatusNotFound)
		case <-ctx.Done():
			http.Error(w, ctx.Err().Error(), http.StatusServiceUnavailable)
		}
	}
}

// RoomQR encodes the room URL, i.e. the request URL without the trailing /qr.
func RoomQR(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	target := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

	png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// Announce relays a chat message from "server" into the room. Unknown rooms
// are accepted and dropped.
func Announce(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		text := strings.TrimSpace(body.Text)
		if text == "" {
			http.Error(w, "empty message", http.StatusBadRequest)
			return
		}

		msg := types.ClientMessage{Type: types.TypeChat, Text: text}
		if !h.Send(hub.Relay{RoomID: chi.URLParam(r, "roomID"), Msg: msg}) {
			http.Error(w, ErrHubStopped.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func GetPassage(src passage.Source, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text, err := src.Next(r.Context())
		if err != nil {
			log.Warn("passage source failed", zap.Error(err))
			http.Error(w, "no passage available", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, passage.Response{Passage: passage.Clamp(text)})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
