package contract

import (
	"context"

	"psvs-console-be/internal/entity"
	"psvs-console-be/internal/repository/specification"
)

type SupervisionFeedbackRepository interface {
	Create(ctx context.Context, feedback *entity.SupervisionFeedback) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SupervisionFeedback, error)
}
