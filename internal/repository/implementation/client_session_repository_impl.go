package implementation

import (
	"context"
	"errors"

	"psvs-console-be/internal/entity"
	"psvs-console-be/internal/mapper"
	"psvs-console-be/internal/model"
	"psvs-console-be/internal/repository/contract"
	"psvs-console-be/internal/repository/scope"
	"psvs-console-be/internal/repository/specification"

	"gorm.io/gorm"
)

type ClientSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TimelineMapper
}

func NewClientSessionRepository(db *gorm.DB) contract.ClientSessionRepository {
	return &ClientSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewTimelineMapper(),
	}
}

func applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ClientSessionRepositoryImpl) Create(ctx context.Context, session *entity.ClientSession) error {
	m := r.mapper.ClientSessionToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.ClientSessionToEntity(m)
	return nil
}

func (r *ClientSessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ClientSession, error) {
	var m model.ClientSession
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ClientSessionToEntity(&m), nil
}

// FindAll returns sessions oldest first unless a specification orders them.
func (r *ClientSessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ClientSession, error) {
	var models []*model.ClientSession
	query := applySpecifications(r.db.WithContext(ctx).Scopes(scope.OrderByStartedAsc), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ClientSession, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ClientSessionToEntity(m)
	}
	return entities, nil
}
