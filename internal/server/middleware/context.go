package middleware

import (
	"context"

	"github.com/gosuda/kanbansync/internal/domain"
)

type contextKey string

const (
	ContextKeyUser     contextKey = "user"
	ContextKeyUserRole contextKey = "role"
)

// WithUser returns ctx carrying an authenticated participant and role.
func WithUser(ctx context.Context, user domain.UserRef, role string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyUser, user)
	return context.WithValue(ctx, ContextKeyUserRole, role)
}

func UserFromContext(ctx context.Context) (domain.UserRef, bool) {
	v, ok := ctx.Value(ContextKeyUser).(domain.UserRef)
	return v, ok && v.ID != ""
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	u, ok := UserFromContext(ctx)
	return u.ID, ok
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyUserRole).(string)
	return v, ok
}
