package implementation

import (
	"context"

	"psvs-console-be/internal/entity"
	"psvs-console-be/internal/mapper"
	"psvs-console-be/internal/model"
	"psvs-console-be/internal/repository/contract"
	"psvs-console-be/internal/repository/scope"
	"psvs-console-be/internal/repository/specification"

	"gorm.io/gorm"
)

type SupervisionFeedbackRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TimelineMapper
}

func NewSupervisionFeedbackRepository(db *gorm.DB) contract.SupervisionFeedbackRepository {
	return &SupervisionFeedbackRepositoryImpl{
		db:     db,
		mapper: mapper.NewTimelineMapper(),
	}
}

func (r *SupervisionFeedbackRepositoryImpl) Create(ctx context.Context, feedback *entity.SupervisionFeedback) error {
	m := r.mapper.SupervisionFeedbackToModel(feedback)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*feedback = *r.mapper.SupervisionFeedbackToEntity(m)
	return nil
}

func (r *SupervisionFeedbackRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SupervisionFeedback, error) {
	var models []*model.SupervisionFeedback
	query := applySpecifications(r.db.WithContext(ctx).Scopes(scope.OrderByCreatedAsc), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.SupervisionFeedback, len(models))
	for i, m := range models {
		entities[i] = r.mapper.SupervisionFeedbackToEntity(m)
	}
	return entities, nil
}
