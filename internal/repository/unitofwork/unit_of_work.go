package unitofwork

import (
	"context"

	"psvs-console-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ClientSessionRepository() contract.ClientSessionRepository
	SessionMessageRepository() contract.SessionMessageRepository
	MiniSessionRepository() contract.MiniSessionRepository
	PsvsPositionRepository() contract.PsvsPositionRepository
	SupervisionFeedbackRepository() contract.SupervisionFeedbackRepository
}
