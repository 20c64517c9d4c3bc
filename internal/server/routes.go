package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/kanbansync/internal/api/v1"
	"github.com/gosuda/kanbansync/internal/api/ws"
	"github.com/gosuda/kanbansync/internal/realtime/transport"
)

func registerAPIRoutes(api huma.API, store v1.DataStore, broker transport.Broker) {
	v1.RegisterBoardRoutes(api, store)
	v1.RegisterPresenceRoutes(api, broker)
	v1.RegisterEventRoutes(api, broker)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/boards/{boardID}", hub.ServeBoard)
}
