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

type SessionMessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TimelineMapper
}

func NewSessionMessageRepository(db *gorm.DB) contract.SessionMessageRepository {
	return &SessionMessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewTimelineMapper(),
	}
}

func (r *SessionMessageRepositoryImpl) Create(ctx context.Context, message *entity.SessionMessage) error {
	m := r.mapper.SessionMessageToModel(message)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*message = *r.mapper.SessionMessageToEntity(m)
	return nil
}

func (r *SessionMessageRepositoryImpl) CreateBulk(ctx context.Context, messages []*entity.SessionMessage) error {
	if len(messages) == 0 {
		return nil
	}
	models := make([]*model.SessionMessage, len(messages))
	for i, msg := range messages {
		models[i] = r.mapper.SessionMessageToModel(msg)
	}
	if err := r.db.WithContext(ctx).CreateInBatches(models, 100).Error; err != nil {
		return err
	}
	for i, m := range models {
		*messages[i] = *r.mapper.SessionMessageToEntity(m)
	}
	return nil
}

func (r *SessionMessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.SessionMessage{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SessionMessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SessionMessage, error) {
	var models []*model.SessionMessage
	query := applySpecifications(r.db.WithContext(ctx).Scopes(scope.OrderByCreatedAsc), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.SessionMessagesToEntities(models), nil
}
