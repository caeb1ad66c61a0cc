package implementation

import (
	"context"

	"psvs-console-be/internal/entity"
	"psvs-console-be/internal/mapper"
	"psvs-console-be/internal/model"
	"psvs-console-be/internal/repository/contract"
	"psvs-console-be/internal/repository/specification"

	"gorm.io/gorm"
)

type PsvsPositionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TimelineMapper
}

func NewPsvsPositionRepository(db *gorm.DB) contract.PsvsPositionRepository {
	return &PsvsPositionRepositoryImpl{
		db:     db,
		mapper: mapper.NewTimelineMapper(),
	}
}

func (r *PsvsPositionRepositoryImpl) Create(ctx context.Context, position *entity.PsvsPosition) error {
	m := r.mapper.PsvsPositionToModel(position)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*position = *r.mapper.PsvsPositionToEntity(m)
	return nil
}

func (r *PsvsPositionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PsvsPosition, error) {
	var models []*model.PsvsPosition
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.PsvsPosition, len(models))
	for i, m := range models {
		entities[i] = r.mapper.PsvsPositionToEntity(m)
	}
	return entities, nil
}
