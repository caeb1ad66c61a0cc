package contract

import (
	"context"

	"psvs-console-be/internal/entity"
	"psvs-console-be/internal/repository/specification"
)

type MiniSessionRepository interface {
	Create(ctx context.Context, miniSession *entity.MiniSession) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.MiniSession, error)
}
