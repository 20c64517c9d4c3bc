package v1

import (
	"context"
	"net/http"
	"sort"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/kanbansync/internal/realtime/presence"
	"github.com/gosuda/kanbansync/internal/realtime/transport"
)

type ListPresenceInput struct {
	BoardID string `path:"boardID" doc:"Board ID"`
}

type ListPresenceOutput struct {
	Body struct {
		Participants []presence.Presence `json:"participants"`
	}
}

func RegisterPresenceRoutes(api huma.API, broker transport.Broker) {
	huma.Register(api, huma.Operation{
		OperationID: "list-presence",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/presence",
		Summary:     "List participants currently connected to a board",
		Tags:        []string{"Presence"},
	}, func(ctx context.Context, input *ListPresenceInput) (*ListPresenceOutput, error) {
		raw, err := broker.Room(input.BoardID).Presences(ctx)
		if err != nil {
			return nil, huma.Error503ServiceUnavailable("presence store unavailable", err)
		}

		out := &ListPresenceOutput{}
		out.Body.Participants = make([]presence.Presence, 0, len(raw))
		for connID, payload := range raw {
			p, decErr := presence.Decode(payload)
			if decErr != nil {
				log.Warn().Err(decErr).Str("board_id", input.BoardID).Str("connection_id", connID).Msg("v1: skipping undecodable presence")
				continue
			}
			p.ConnectionID = connID
			out.Body.Participants = append(out.Body.Participants, p)
		}
		sort.Slice(out.Body.Participants, func(i, j int) bool {
			return out.Body.Participants[i].ConnectionID < out.Body.Participants[j].ConnectionID
		})

		return out, nil
	})
}
