package domain

import (
	"time"
)

// Employee представляет сотрудника в иерархии организации
type Employee struct {
	ID               int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerScope       string    `json:"-" gorm:"type:varchar(255);not null;index"`
	Name             string    `json:"name" gorm:"type:varchar(200);not null"`
	Title            string    `json:"title" gorm:"type:varchar(200);not null"`
	PrimaryManagerID *int64    `json:"primary_manager_id" gorm:"index"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName задаёт имя таблицы для GORM
func (Employee) TableName() string {
	return "employees"
}

// IsContainer сообщает, является ли запись корневым контейнером
func (e *Employee) IsContainer() bool {
	return e.Name == "" && e.Title == "" && e.PrimaryManagerID == nil
}

// IsDirector сообщает, является ли запись директором (верхний уровень без руководителя)
func (e *Employee) IsDirector() bool {
	return e.PrimaryManagerID == nil && !e.IsContainer()
}

// ReportingLine представляет дополнительную линию подчинения manager -> employee
type ReportingLine struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerScope string    `json:"-" gorm:"type:varchar(255);not null;index"`
	EmployeeID int64     `json:"employee_id" gorm:"not null;uniqueIndex:idx_reporting_lines_pair"`
	ManagerID  int64     `json:"manager_id" gorm:"not null;uniqueIndex:idx_reporting_lines_pair;index"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName задаёт имя таблицы для GORM
func (ReportingLine) TableName() string {
	return "reporting_lines"
}
