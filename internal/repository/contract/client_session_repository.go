package contract

import (
	"context"

	"psvs-console-be/internal/entity"
	"psvs-console-be/internal/repository/specification"
)

type ClientSessionRepository interface {
	Create(ctx context.Context, session *entity.ClientSession) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ClientSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ClientSession, error)
}
