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

type MiniSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TimelineMapper
}

func NewMiniSessionRepository(db *gorm.DB) contract.MiniSessionRepository {
	return &MiniSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewTimelineMapper(),
	}
}

func (r *MiniSessionRepositoryImpl) Create(ctx context.Context, miniSession *entity.MiniSession) error {
	m := r.mapper.MiniSessionToModel(miniSession)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*miniSession = *r.mapper.MiniSessionToEntity(m)
	return nil
}

func (r *MiniSessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.MiniSession, error) {
	var models []*model.MiniSession
	query := applySpecifications(r.db.WithContext(ctx).Scopes(scope.OrderByStartedAsc), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.MiniSession, len(models))
	for i, m := range models {
		entities[i] = r.mapper.MiniSessionToEntity(m)
	}
	return entities, nil
}
