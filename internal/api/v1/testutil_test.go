package v1_test

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gosuda/kanbansync/internal/domain"
	"github.com/gosuda/kanbansync/internal/realtime/transport"
	"github.com/gosuda/kanbansync/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers — inject the authenticated user for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID string) context.Context {
	return middleware.WithUser(context.Background(), domain.UserRef{ID: userID}, middleware.RoleMember)
}

func viewerCtx(userID string) context.Context {
	return middleware.WithUser(context.Background(), domain.UserRef{ID: userID}, middleware.RoleViewer)
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	boards domain.BoardRepository
}

func (m *mockDataStore) Boards() domain.BoardRepository { return m.boards }

type mockBoardRepo struct {
	snapshotFunc func(ctx context.Context, boardID string) (*domain.BoardSnapshot, error)
}

func (m *mockBoardRepo) Snapshot(ctx context.Context, boardID string) (*domain.BoardSnapshot, error) {
	return m.snapshotFunc(ctx, boardID)
}

// ---------------------------------------------------------------------------
// Failing transport
// ---------------------------------------------------------------------------

var errTransportDown = errors.New("transport down")

type downBroker struct{}

func (downBroker) Room(string) transport.Room { return downRoom{} }

type downRoom struct{}

func (downRoom) Publish(context.Context, transport.Frame) error { return errTransportDown }
func (downRoom) Subscribe(context.Context) (<-chan transport.Frame, func(), error) {
	return nil, nil, errTransportDown
}
func (downRoom) SetPresence(context.Context, string, json.RawMessage) error { return errTransportDown }
func (downRoom) ClearPresence(context.Context, string) error                { return errTransportDown }
func (downRoom) Presences(context.Context) (map[string]json.RawMessage, error) {
	return nil, errTransportDown
}
