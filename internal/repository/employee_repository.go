package repository

import (
	"context"
	"errors"

	"github.com/org-hierarchy-api/internal/domain"
	"gorm.io/gorm"
)

// EmployeeRepository определяет интерфейс для работы с сотрудниками
type EmployeeRepository interface {
	ListByScope(ctx context.Context, scope string) ([]domain.Employee, error)
	Create(ctx context.Context, emp *domain.Employee) error
	UpdateFields(ctx context.Context, id int64, fields map[string]any) error
	Delete(ctx context.Context, id int64) error
	DeleteByScope(ctx context.Context, scope string) error
}

type employeeRepository struct {
	db *gorm.DB
}

// NewEmployeeRepository создаёт новый экземпляр репозитория
func NewEmployeeRepository(db *gorm.DB) EmployeeRepository {
	return &employeeRepository{db: db}
}

func (r *employeeRepository) ListByScope(ctx context.Context, scope string) ([]domain.Employee, error) {
	var employees []domain.Employee
	err := r.db.WithContext(ctx).
		Where("owner_scope = ?", scope).
		Order("id ASC").
		Find(&employees).Error
	return employees, err
}

func (r *employeeRepository) Create(ctx context.Context, emp *domain.Employee) error {
	return r.db.WithContext(ctx).Create(emp).Error
}

func (r *employeeRepository) UpdateFields(ctx context.Context, id int64, fields map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Employee{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrEmployeeNotFound
	}
	return nil
}

func (r *employeeRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&domain.Employee{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrEmployeeNotFound
	}
	return nil
}

func (r *employeeRepository) DeleteByScope(ctx context.Context, scope string) error {
	return r.db.WithContext(ctx).
		Where("owner_scope = ?", scope).
		Delete(&domain.Employee{}).Error
}

// isNotFound сообщает об отсутствии записи
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
