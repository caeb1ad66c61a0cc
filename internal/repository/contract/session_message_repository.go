package contract

import (
	"context"

	"psvs-console-be/internal/entity"
	"psvs-console-be/internal/repository/specification"
)

type SessionMessageRepository interface {
	Create(ctx context.Context, message *entity.SessionMessage) error
	CreateBulk(ctx context.Context, messages []*entity.SessionMessage) error
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SessionMessage, error)
}
