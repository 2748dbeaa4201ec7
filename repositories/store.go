package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that take part in one workflow operation.
// Repositories obtained inside Transaction share the transaction.
type Store interface {
	Policies() PolicyRepository
	History() WorkflowHistoryRepository
	Users() UserRepository
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Policies() PolicyRepository {
	return NewPolicyRepository(s.db)
}

func (s *gormStore) History() WorkflowHistoryRepository {
	return NewWorkflowHistoryRepository(s.db)
}

func (s *gormStore) Users() UserRepository {
	return NewUserRepository(s.db)
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}
