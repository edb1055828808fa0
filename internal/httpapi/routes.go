package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/type-rush-backend/internal/hub"
	"github.com/DoyleJ11/type-rush-backend/internal/passage"
	"github.com/DoyleJ11/type-rush-backend/internal/ws"
)

type Deps struct {
	Hub    *hub.Hub
	Source passage.Source
	WS     ws.Options
	Log    *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(d.Log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d.Hub, d.WS, d.Log))
	r.Get("/passage", GetPassage(d.Source, d.Log))

	r.Route("/rooms", func(r chi.Router) {
		r.Post("/", CreateRoom(d.Hub, d.Log))
		r.Get("/{roomID}", GetRoom(d.Hub))
		r.Get("/{roomID}/qr", RoomQR)
		r.Post("/{roomID}/messages", Announce(d.Hub))
	})
	return r
}
