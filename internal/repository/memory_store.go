package repository

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/org-hierarchy-api/internal/domain"
)

// MemoryStore хранит записи в памяти процесса (DB_DRIVER=memory и тесты).
// Транзакция держит мьютекс хранилища до конца и откатывается восстановлением снимка.
type MemoryStore struct {
	mu        sync.Mutex
	employees map[int64]domain.Employee
	lines     map[int64]domain.ReportingLine
	nextEmpID int64
	nextLine  int64
}

// NewMemoryStore создаёт пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		employees: make(map[int64]domain.Employee),
		lines:     make(map[int64]domain.ReportingLine),
		nextEmpID: 1,
		nextLine:  1,
	}
}

func (s *MemoryStore) Employees() EmployeeRepository {
	return memoryEmployees{s: s}
}

func (s *MemoryStore) ReportingLines() ReportingLineRepository {
	return memoryLines{s: s}
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	employees := maps.Clone(s.employees)
	lines := maps.Clone(s.lines)
	nextEmpID, nextLine := s.nextEmpID, s.nextLine

	if err := fn(memoryTx{s}); err != nil {
		s.employees, s.lines = employees, lines
		s.nextEmpID, s.nextLine = nextEmpID, nextLine
		return err
	}
	return nil
}

// lock захватывает мьютекс, если он ещё не удерживается транзакцией
func (s *MemoryStore) lock(held bool) func() {
	if held {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// memoryTx - представление хранилища внутри транзакции, мьютекс уже захвачен
type memoryTx struct {
	s *MemoryStore
}

func (tx memoryTx) Employees() EmployeeRepository {
	return memoryEmployees{s: tx.s, held: true}
}

func (tx memoryTx) ReportingLines() ReportingLineRepository {
	return memoryLines{s: tx.s, held: true}
}

// Transaction внутри транзакции выполняется в её рамках
func (tx memoryTx) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return fn(tx)
}

type memoryEmployees struct {
	s    *MemoryStore
	held bool
}

func (r memoryEmployees) ListByScope(ctx context.Context, scope string) ([]domain.Employee, error) {
	defer r.s.lock(r.held)()

	var out []domain.Employee
	for _, emp := range r.s.employees {
		if emp.OwnerScope == scope {
			out = append(out, cloneEmployee(emp))
		}
	}
	slices.SortFunc(out, func(a, b domain.Employee) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r memoryEmployees) Create(ctx context.Context, emp *domain.Employee) error {
	defer r.s.lock(r.held)()

	now := time.Now()
	emp.ID = r.s.nextEmpID
	emp.CreatedAt = now
	emp.UpdatedAt = now
	r.s.nextEmpID++
	r.s.employees[emp.ID] = cloneEmployee(*emp)
	return nil
}

func (r memoryEmployees) UpdateFields(ctx context.Context, id int64, fields map[string]any) error {
	defer r.s.lock(r.held)()

	emp, ok := r.s.employees[id]
	if !ok {
		return domain.ErrEmployeeNotFound
	}
	for key, value := range fields {
		switch key {
		case "name":
			emp.Name = value.(string)
		case "title":
			emp.Title = value.(string)
		case "primary_manager_id":
			switch v := value.(type) {
			case nil:
				emp.PrimaryManagerID = nil
			case int64:
				emp.PrimaryManagerID = &v
			case *int64:
				emp.PrimaryManagerID = v
			}
		}
	}
	emp.UpdatedAt = time.Now()
	r.s.employees[id] = cloneEmployee(emp)
	return nil
}

func (r memoryEmployees) Delete(ctx context.Context, id int64) error {
	defer r.s.lock(r.held)()

	if _, ok := r.s.employees[id]; !ok {
		return domain.ErrEmployeeNotFound
	}
	delete(r.s.employees, id)
	return nil
}

func (r memoryEmployees) DeleteByScope(ctx context.Context, scope string) error {
	defer r.s.lock(r.held)()

	maps.DeleteFunc(r.s.employees, func(_ int64, emp domain.Employee) bool {
		return emp.OwnerScope == scope
	})
	return nil
}

type memoryLines struct {
	s    *MemoryStore
	held bool
}

func (r memoryLines) ListByScope(ctx context.Context, scope string) ([]domain.ReportingLine, error) {
	defer r.s.lock(r.held)()

	var out []domain.ReportingLine
	for _, line := range r.s.lines {
		if line.OwnerScope == scope {
			out = append(out, line)
		}
	}
	slices.SortFunc(out, func(a, b domain.ReportingLine) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r memoryLines) Exists(ctx context.Context, employeeID, managerID int64) (bool, error) {
	defer r.s.lock(r.held)()

	return r.find(employeeID, managerID) != 0, nil
}

// find возвращает id линии или 0; вызывается под мьютексом
func (r memoryLines) find(employeeID, managerID int64) int64 {
	for id, line := range r.s.lines {
		if line.EmployeeID == employeeID && line.ManagerID == managerID {
			return id
		}
	}
	return 0
}

func (r memoryLines) Create(ctx context.Context, line *domain.ReportingLine) error {
	defer r.s.lock(r.held)()

	if r.find(line.EmployeeID, line.ManagerID) != 0 {
		return domain.ErrDuplicateReportingLine
	}
	line.ID = r.s.nextLine
	line.CreatedAt = time.Now()
	r.s.nextLine++
	r.s.lines[line.ID] = *line
	return nil
}

func (r memoryLines) Delete(ctx context.Context, employeeID, managerID int64) error {
	defer r.s.lock(r.held)()

	id := r.find(employeeID, managerID)
	if id == 0 {
		return domain.ErrReportingLineNotFound
	}
	delete(r.s.lines, id)
	return nil
}

func (r memoryLines) DeleteAllFor(ctx context.Context, id int64) error {
	defer r.s.lock(r.held)()

	maps.DeleteFunc(r.s.lines, func(_ int64, line domain.ReportingLine) bool {
		return line.EmployeeID == id || line.ManagerID == id
	})
	return nil
}

func (r memoryLines) DeleteByScope(ctx context.Context, scope string) error {
	defer r.s.lock(r.held)()

	maps.DeleteFunc(r.s.lines, func(_ int64, line domain.ReportingLine) bool {
		return line.OwnerScope == scope
	})
	return nil
}

func cloneEmployee(emp domain.Employee) domain.Employee {
	if emp.PrimaryManagerID != nil {
		managerID := *emp.PrimaryManagerID
		emp.PrimaryManagerID = &managerID
	}
	return emp
}
