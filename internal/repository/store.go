package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store объединяет коллекции записей одной базы
type Store interface {
	Employees() EmployeeRepository
	ReportingLines() ReportingLineRepository
	// Transaction выполняет fn атомарно; при ошибке изменения откатываются
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore создаёт хранилище поверх GORM
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Employees() EmployeeRepository {
	return NewEmployeeRepository(s.db)
}

func (s *gormStore) ReportingLines() ReportingLineRepository {
	return NewReportingLineRepository(s.db)
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}
