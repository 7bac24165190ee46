package dto

// CreateEmployeeRequest - запрос на создание сотрудника
type CreateEmployeeRequest struct {
	ParentID   int64  `json:"parent_id"`
	Name       string `json:"name" validate:"required,min=1,max=200"`
	Title      string `json:"title" validate:"required,min=1,max=200"`
	IsDirector bool   `json:"is_director"`
}

// UpdateEmployeeRequest - запрос на изменение имени и должности
type UpdateEmployeeRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=200"`
	Title *string `json:"title" validate:"omitempty,min=1,max=200"`
}

// MoveEmployeeRequest - запрос на смену основного руководителя
type MoveEmployeeRequest struct {
	ManagerID int64 `json:"manager_id"`
}

// ReportingLineRequest - дополнительная линия подчинения
type ReportingLineRequest struct {
	ManagerID  int64 `json:"manager_id" validate:"required"`
	EmployeeID int64 `json:"employee_id" validate:"required,min=1"`
}

// EmployeeResponse - ответ с данными сотрудника
type EmployeeResponse struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Title            string `json:"title"`
	PrimaryManagerID *int64 `json:"primary_manager_id"`
}

// NodeResponse - узел дерева подчинения
type NodeResponse struct {
	ID               int64          `json:"id"`
	Name             string         `json:"name"`
	Title            string         `json:"title"`
	PrimaryManagerID *int64         `json:"primary_manager_id"`
	ReportsTo        []int64        `json:"reports_to"`
	Children         []NodeResponse `json:"children"`
}

// ChartResponse - дерево области целиком
type ChartResponse struct {
	RootID        int64          `json:"root_id"`
	TransientRoot bool           `json:"transient_root"`
	Directors     []NodeResponse `json:"directors"`
	Size          int            `json:"size"`
}

// ErrorResponse - стандартный ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
