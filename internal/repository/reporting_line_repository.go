package repository

import (
	"context"
	"errors"

	"github.com/org-hierarchy-api/internal/domain"
	"gorm.io/gorm"
)

// ReportingLineRepository определяет интерфейс для работы с линиями подчинения
type ReportingLineRepository interface {
	ListByScope(ctx context.Context, scope string) ([]domain.ReportingLine, error)
	Exists(ctx context.Context, employeeID, managerID int64) (bool, error)
	Create(ctx context.Context, line *domain.ReportingLine) error
	Delete(ctx context.Context, employeeID, managerID int64) error
	// DeleteAllFor удаляет линии, где id выступает сотрудником или руководителем
	DeleteAllFor(ctx context.Context, id int64) error
	DeleteByScope(ctx context.Context, scope string) error
}

type reportingLineRepository struct {
	db *gorm.DB
}

// NewReportingLineRepository создаёт новый экземпляр репозитория
func NewReportingLineRepository(db *gorm.DB) ReportingLineRepository {
	return &reportingLineRepository{db: db}
}

func (r *reportingLineRepository) ListByScope(ctx context.Context, scope string) ([]domain.ReportingLine, error) {
	var lines []domain.ReportingLine
	err := r.db.WithContext(ctx).
		Where("owner_scope = ?", scope).
		Order("id ASC").
		Find(&lines).Error
	return lines, err
}

func (r *reportingLineRepository) Exists(ctx context.Context, employeeID, managerID int64) (bool, error) {
	var line domain.ReportingLine
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND manager_id = ?", employeeID, managerID).
		First(&line).Error
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *reportingLineRepository) Create(ctx context.Context, line *domain.ReportingLine) error {
	err := r.db.WithContext(ctx).Create(line).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicateReportingLine
	}
	return err
}

func (r *reportingLineRepository) Delete(ctx context.Context, employeeID, managerID int64) error {
	result := r.db.WithContext(ctx).
		Where("employee_id = ? AND manager_id = ?", employeeID, managerID).
		Delete(&domain.ReportingLine{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrReportingLineNotFound
	}
	return nil
}

func (r *reportingLineRepository) DeleteAllFor(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Where("employee_id = ? OR manager_id = ?", id, id).
		Delete(&domain.ReportingLine{}).Error
}

func (r *reportingLineRepository) DeleteByScope(ctx context.Context, scope string) error {
	return r.db.WithContext(ctx).
		Where("owner_scope = ?", scope).
		Delete(&domain.ReportingLine{}).Error
}
