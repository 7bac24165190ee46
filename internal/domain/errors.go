package domain

import (
	"errors"
	"fmt"
)

// Определение бизнес-ошибок
var (
	ErrValidation             = errors.New("validation error")
	ErrEmployeeNotFound       = errors.New("employee not found")
	ErrReportingLineNotFound  = errors.New("reporting line not found")
	ErrDuplicateReportingLine = errors.New("reporting line already exists")
	ErrHasChildren            = errors.New("employee has direct reports")
	ErrLastDirector           = errors.New("cannot remove the last remaining director")
	ErrRootLinkRejected       = errors.New("reporting line cannot reference the root container")
	ErrCycleRejected          = errors.New("reporting line would create a cycle")
	ErrRootImmutable          = errors.New("root container cannot be modified")
	ErrScopeRequired          = errors.New("owner scope is required")
)

// StoreError оборачивает ошибку хранилища
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError возвращает nil, если err == nil
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
