package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/kanbansync/internal/domain"
)

type GetBoardInput struct {
	BoardID string `path:"boardID" doc:"Board ID"`
}

type GetBoardOutput struct {
	Body *domain.BoardSnapshot
}

// RegisterBoardRoutes exposes the canonical snapshot that clients refetch
// after a FORCE_REFRESH event. store may be nil when no database is
// configured; the route then answers 501.
func RegisterBoardRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}",
		Summary:     "Get the canonical board snapshot",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *GetBoardInput) (*GetBoardOutput, error) {
		if store == nil {
			return nil, huma.Error501NotImplemented("canonical board store not configured")
		}

		snap, err := store.Boards().Snapshot(ctx, input.BoardID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("board not found")
			}
			return nil, huma.Error500InternalServerError("failed to load board", err)
		}

		return &GetBoardOutput{Body: snap}, nil
	})
}
