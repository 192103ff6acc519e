package requestdata

import (
	"context"

	"github.com/google/uuid"
)

type Role string

const (
	RoleFarm   Role = "farm"
	RoleClient Role = "client"
)

type RequestData struct {
	TokenString string
	ActorID     uuid.UUID
	Role        Role
}

type ctxKey struct{}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, ctxKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(ctxKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}
