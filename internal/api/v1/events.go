package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/kanbansync/internal/realtime/event"
	"github.com/gosuda/kanbansync/internal/realtime/transport"
	"github.com/gosuda/kanbansync/internal/server/middleware"
)

type PublishEventInput struct {
	BoardID string `path:"boardID" doc:"Board ID"`
	RawBody []byte
}

type PublishEventOutput struct {
	Body struct {
		Type        event.Type `json:"type"`
		Disposition string     `json:"disposition"`
	}
}

// RegisterEventRoutes lets backend mutation handlers broadcast an event
// without holding a WebSocket. Delivery is best effort: a transport failure
// is logged and the request still succeeds.
func RegisterEventRoutes(api huma.API, broker transport.Broker) {
	huma.Register(api, huma.Operation{
		OperationID:   "publish-event",
		Method:        http.MethodPost,
		Path:          "/boards/{boardID}/events",
		Summary:       "Broadcast a board event to connected participants",
		Tags:          []string{"Events"},
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *PublishEventInput) (*PublishEventOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}
		if role, _ := middleware.RoleFromContext(ctx); !middleware.CanWrite(role) {
			return nil, huma.Error403Forbidden("read-only participants cannot publish")
		}

		e, err := event.Decode(input.RawBody)
		if err != nil {
			if errors.Is(err, event.ErrUnknownType) || errors.Is(err, event.ErrMissingType) {
				return nil, huma.Error422UnprocessableEntity(err.Error())
			}
			return nil, huma.Error400BadRequest("malformed event", err)
		}

		h := e.Header()
		if h.UserID != userID {
			return nil, huma.Error403Forbidden("event userId does not match the authenticated user")
		}
		if h.Timestamp == 0 {
			event.Stamp(e, userID, time.Now())
		}

		payload, err := event.Encode(e)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to encode event", err)
		}

		if pubErr := broker.Room(input.BoardID).Publish(ctx, transport.Frame{Kind: transport.FrameEvent, Payload: payload}); pubErr != nil {
			log.Warn().Err(pubErr).
				Str("board_id", input.BoardID).
				Str("event_type", string(h.Type)).
				Msg("v1: event publish failed")
		}

		out := &PublishEventOutput{}
		out.Body.Type = h.Type
		out.Body.Disposition = event.Resolve(e).Disposition.String()
		return out, nil
	})
}
