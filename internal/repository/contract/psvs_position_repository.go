package contract

import (
	"context"

	"psvs-console-be/internal/entity"
	"psvs-console-be/internal/repository/specification"
)

type PsvsPositionRepository interface {
	Create(ctx context.Context, position *entity.PsvsPosition) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PsvsPosition, error)
}
