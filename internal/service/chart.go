package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/org-hierarchy-api/internal/domain"
	"github.com/org-hierarchy-api/internal/hierarchy"
	"github.com/org-hierarchy-api/internal/metrics"
	"github.com/org-hierarchy-api/internal/repository"
)

// ChartView - снимок дерева области только для чтения
type ChartView struct {
	Root RootResolution
	Tree *hierarchy.Tree
}

// Chart - сессия иерархии одной области. Все операции сериализуются,
// структурные проверки выполняются до записи в хранилище.
type Chart struct {
	mu      sync.Mutex
	scope   string
	store   repository.Store
	roots   *RootBootstrapper
	metrics *metrics.Metrics
	logger  *slog.Logger

	root RootResolution
	tree *hierarchy.Tree
}

// NewChart создаёт сессию; дерево загружается при первой операции
func NewChart(scope string, store repository.Store, m *metrics.Metrics, logger *slog.Logger) *Chart {
	logger = logger.With(slog.String("scope", scope))
	return &Chart{
		scope:   scope,
		store:   store,
		roots:   NewRootBootstrapper(store, logger),
		metrics: m,
		logger:  logger,
	}
}

// Scope возвращает область сессии
func (c *Chart) Scope() string {
	return c.scope
}

// Snapshot возвращает копию текущего дерева
func (c *Chart) Snapshot(ctx context.Context) (ChartView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(ctx); err != nil {
		return ChartView{}, err
	}
	return ChartView{Root: c.root, Tree: c.tree.Clone()}, nil
}

// RootID возвращает id корня текущей сессии
func (c *Chart) RootID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(ctx); err != nil {
		return 0, err
	}
	return c.root.ID, nil
}

// Resync перечитывает обе коллекции и пересобирает дерево
func (c *Chart) Resync(ctx context.Context) (err error) {
	defer func() { c.metrics.ObserveOperation("resync", err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.resync(ctx)
}

// Reinitialize удаляет все данные области и начинает с пустого контейнера
func (c *Chart) Reinitialize(ctx context.Context) (err error) {
	defer func() { c.metrics.ObserveOperation("reinitialize", err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.roots.Reinitialize(ctx, c.scope); err != nil {
		return err
	}
	return c.resync(ctx)
}

// AddEmployee создаёт сотрудника под parentID
func (c *Chart) AddEmployee(ctx context.Context, parentID int64, name, title string, isDirector bool) (_ *domain.Employee, err error) {
	defer func() { c.metrics.ObserveOperation("add_employee", err) }()

	name, title = strings.TrimSpace(name), strings.TrimSpace(title)
	if err := validateNames(name, title); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	if _, ok := c.tree.Find(parentID); !ok {
		return nil, fmt.Errorf("%w: parent %d", domain.ErrEmployeeNotFound, parentID)
	}

	// Директор хранится без руководителя и в дереве всегда висит под корнем
	director := isDirector || c.tree.IsRoot(parentID)
	emp := &domain.Employee{OwnerScope: c.scope, Name: name, Title: title}
	if !director {
		managerID := parentID
		emp.PrimaryManagerID = &managerID
	}

	err = c.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Employees().Create(ctx, emp); err != nil {
			return domain.NewStoreError("create employee", err)
		}
		if director {
			return nil
		}
		line := &domain.ReportingLine{OwnerScope: c.scope, EmployeeID: emp.ID, ManagerID: parentID}
		return domain.NewStoreError("create reporting line", tx.ReportingLines().Create(ctx, line))
	})
	if err != nil {
		return nil, domain.NewStoreError("add employee", err)
	}

	node := &hierarchy.Node{ID: emp.ID, Name: emp.Name, Title: emp.Title}
	insertAt := c.tree.Root.ID
	if !director {
		managerID := parentID
		node.PrimaryManagerID = &managerID
		node.ReportsTo = []int64{parentID}
		insertAt = parentID
	}
	if err := c.tree.Insert(insertAt, node); err != nil {
		c.logger.Warn("in-memory insert failed, resyncing", slog.Int64("employee_id", emp.ID), slog.Any("error", err))
		if err := c.resync(ctx); err != nil {
			return emp, err
		}
	}

	c.logger.Debug("employee added",
		slog.Int64("employee_id", emp.ID),
		slog.Int64("parent_id", parentID),
		slog.Bool("director", director),
	)
	return emp, nil
}

// UpdateEmployee меняет имя и/или должность сотрудника
func (c *Chart) UpdateEmployee(ctx context.Context, id int64, name, title *string) (_ *domain.Employee, err error) {
	defer func() { c.metrics.ObserveOperation("update_employee", err) }()

	if name == nil && title == nil {
		return nil, fmt.Errorf("%w: nothing to update", domain.ErrValidation)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	if c.tree.IsRoot(id) {
		return nil, domain.ErrRootImmutable
	}
	node, ok := c.tree.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrEmployeeNotFound, id)
	}

	newName, newTitle := node.Name, node.Title
	if name != nil {
		newName = strings.TrimSpace(*name)
	}
	if title != nil {
		newTitle = strings.TrimSpace(*title)
	}
	if err := validateNames(newName, newTitle); err != nil {
		return nil, err
	}

	fields := map[string]any{"name": newName, "title": newTitle}
	if err := c.store.Employees().UpdateFields(ctx, id, fields); err != nil {
		return nil, domain.NewStoreError("update employee", err)
	}

	node.Name, node.Title = newName, newTitle
	return nodeEmployee(c.scope, node), nil
}

// RemoveEmployee удаляет сотрудника без подчинённых вместе с его линиями
func (c *Chart) RemoveEmployee(ctx context.Context, id int64) (err error) {
	defer func() { c.metrics.ObserveOperation("remove_employee", err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(ctx); err != nil {
		return err
	}
	if c.tree.IsRoot(id) {
		return domain.ErrRootImmutable
	}
	node, ok := c.tree.Find(id)
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrEmployeeNotFound, id)
	}
	if len(node.Children) > 0 {
		return fmt.Errorf("%w: %d direct reports", domain.ErrHasChildren, len(node.Children))
	}
	if c.tree.IsDirector(id) && len(c.tree.Directors()) == 1 {
		return domain.ErrLastDirector
	}

	err = c.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.ReportingLines().DeleteAllFor(ctx, id); err != nil {
			return domain.NewStoreError("delete reporting lines", err)
		}
		return domain.NewStoreError("delete employee", tx.Employees().Delete(ctx, id))
	})
	if err != nil {
		return domain.NewStoreError("remove employee", err)
	}

	if _, err := c.tree.Detach(id); err != nil {
		c.logger.Warn("in-memory detach failed, resyncing", slog.Int64("employee_id", id), slog.Any("error", err))
		return c.resync(ctx)
	}
	c.logger.Debug("employee removed", slog.Int64("employee_id", id))
	return nil
}

// AddReportingLine добавляет дополнительного руководителя managerID сотруднику employeeID
func (c *Chart) AddReportingLine(ctx context.Context, managerID, employeeID int64) (err error) {
	defer func() { c.metrics.ObserveOperation("add_reporting_line", err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(ctx); err != nil {
		return err
	}
	if c.tree.IsRoot(managerID) || c.tree.IsRoot(employeeID) {
		return domain.ErrRootLinkRejected
	}
	if _, ok := c.tree.Find(managerID); !ok {
		return fmt.Errorf("%w: manager %d", domain.ErrEmployeeNotFound, managerID)
	}
	employee, ok := c.tree.Find(employeeID)
	if !ok {
		return fmt.Errorf("%w: employee %d", domain.ErrEmployeeNotFound, employeeID)
	}
	if slices.Contains(employee.ReportsTo, managerID) {
		return nil
	}
	if hierarchy.WouldCreateCycle(managerID, employeeID, c.tree) {
		return domain.ErrCycleRejected
	}

	// Строка может уже быть в хранилище, если дерево устарело
	stored, err := c.store.ReportingLines().Exists(ctx, employeeID, managerID)
	if err != nil {
		return domain.NewStoreError("check reporting line", err)
	}
	if !stored {
		line := &domain.ReportingLine{OwnerScope: c.scope, EmployeeID: employeeID, ManagerID: managerID}
		err = c.store.ReportingLines().Create(ctx, line)
		if err != nil && !errors.Is(err, domain.ErrDuplicateReportingLine) {
			return domain.NewStoreError("create reporting line", err)
		}
		stored = err != nil
	}
	if stored {
		c.logger.Warn("reporting line already stored", slog.Int64("employee_id", employeeID), slog.Int64("manager_id", managerID))
	}

	c.logger.Debug("reporting line added", slog.Int64("employee_id", employeeID), slog.Int64("manager_id", managerID))
	return c.resync(ctx)
}

// RemoveReportingLine удаляет линию подчинения. Если это была линия основного
// руководителя, сотрудник переходит к следующему руководителю из reportsTo.
func (c *Chart) RemoveReportingLine(ctx context.Context, managerID, employeeID int64) (err error) {
	defer func() { c.metrics.ObserveOperation("remove_reporting_line", err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(ctx); err != nil {
		return err
	}

	employee, ok := c.tree.Find(employeeID)
	if !ok {
		return fmt.Errorf("%w: employee %d", domain.ErrEmployeeNotFound, employeeID)
	}
	if !slices.Contains(employee.ReportsTo, managerID) {
		return fmt.Errorf("%w: %d -> %d", domain.ErrReportingLineNotFound, managerID, employeeID)
	}

	var nextManagerID *int64
	isPrimary := employee.PrimaryManagerID != nil && *employee.PrimaryManagerID == managerID
	if isPrimary && len(employee.ReportsTo) > 1 && employee.ReportsTo[0] == managerID {
		next := employee.ReportsTo[1]
		if err := c.validateMove(employeeID, next); err != nil {
			return err
		}
		nextManagerID = &next
	}

	err = c.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.ReportingLines().Delete(ctx, employeeID, managerID); err != nil {
			return domain.NewStoreError("delete reporting line", err)
		}
		if nextManagerID == nil {
			return nil
		}
		fields := map[string]any{"primary_manager_id": c.persistedManager(*nextManagerID)}
		return domain.NewStoreError("move employee", tx.Employees().UpdateFields(ctx, employeeID, fields))
	})
	if err != nil {
		return domain.NewStoreError("remove reporting line", err)
	}

	if nextManagerID != nil {
		c.logger.Debug("primary manager reassigned",
			slog.Int64("employee_id", employeeID),
			slog.Int64("old_manager_id", managerID),
			slog.Int64("new_manager_id", *nextManagerID),
		)
	}
	return c.resync(ctx)
}

// MoveEmployeeToManager меняет основного руководителя, сохраняя поддерево сотрудника
func (c *Chart) MoveEmployeeToManager(ctx context.Context, employeeID, newManagerID int64) (err error) {
	defer func() { c.metrics.ObserveOperation("move_employee", err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(ctx); err != nil {
		return err
	}
	if slices.Contains(c.tree.Orphans, employeeID) {
		return c.reattach(ctx, employeeID, newManagerID)
	}
	if err := c.validateMove(employeeID, newManagerID); err != nil {
		return err
	}

	node, _ := c.tree.Find(employeeID)
	oldManagerID := node.PrimaryManagerID
	toRoot := c.tree.IsRoot(newManagerID)
	if err := c.persistMove(ctx, employeeID, oldManagerID, newManagerID, slices.Contains(node.ReportsTo, newManagerID)); err != nil {
		return err
	}

	if err := c.tree.Move(employeeID, newManagerID); err != nil {
		c.logger.Warn("in-memory move failed, resyncing", slog.Int64("employee_id", employeeID), slog.Any("error", err))
		return c.resync(ctx)
	}
	reports := slices.DeleteFunc(slices.Clone(node.ReportsTo), func(id int64) bool {
		return id == newManagerID || (oldManagerID != nil && id == *oldManagerID)
	})
	if !toRoot {
		reports = append([]int64{newManagerID}, reports...)
	}
	node.ReportsTo = reports

	c.logger.Debug("employee moved", slog.Int64("employee_id", employeeID), slog.Int64("manager_id", newManagerID))
	return nil
}

// reattach возвращает в дерево сотрудника, чей руководитель отсутствует.
// Дерево с новым руководителем собирается из хранилища и проверяется до записи.
func (c *Chart) reattach(ctx context.Context, employeeID, newManagerID int64) error {
	if _, ok := c.tree.Find(newManagerID); !ok {
		return fmt.Errorf("%w: manager %d", domain.ErrEmployeeNotFound, newManagerID)
	}

	employees, err := c.store.Employees().ListByScope(ctx, c.scope)
	if err != nil {
		return domain.NewStoreError("list employees", err)
	}
	lines, err := c.store.ReportingLines().ListByScope(ctx, c.scope)
	if err != nil {
		return domain.NewStoreError("list reporting lines", err)
	}

	pos := slices.IndexFunc(employees, func(emp domain.Employee) bool { return emp.ID == employeeID })
	if pos < 0 {
		return fmt.Errorf("%w: employee %d", domain.ErrEmployeeNotFound, employeeID)
	}
	oldManagerID := employees[pos].PrimaryManagerID
	toRoot := c.tree.IsRoot(newManagerID)
	hasLine := slices.ContainsFunc(lines, func(line domain.ReportingLine) bool {
		return line.EmployeeID == employeeID && line.ManagerID == newManagerID
	})

	employees[pos].PrimaryManagerID = nil
	if !toRoot {
		managerID := newManagerID
		employees[pos].PrimaryManagerID = &managerID
		if !hasLine {
			lines = append(lines, domain.ReportingLine{OwnerScope: c.scope, EmployeeID: employeeID, ManagerID: newManagerID})
		}
	}
	candidate := hierarchy.Build(employees, lines, c.root.ID)
	if _, ok := candidate.Find(employeeID); !ok || candidate.HasCycle() {
		return domain.ErrCycleRejected
	}

	if err := c.persistMove(ctx, employeeID, oldManagerID, newManagerID, hasLine); err != nil {
		return err
	}
	c.logger.Info("orphaned employee reattached", slog.Int64("employee_id", employeeID), slog.Int64("manager_id", newManagerID))
	return c.resync(ctx)
}

// persistMove записывает нового основного руководителя и линию к нему одной транзакцией
func (c *Chart) persistMove(ctx context.Context, employeeID int64, oldManagerID *int64, newManagerID int64, hasLine bool) error {
	err := c.store.Transaction(ctx, func(tx repository.Store) error {
		fields := map[string]any{"primary_manager_id": c.persistedManager(newManagerID)}
		if err := tx.Employees().UpdateFields(ctx, employeeID, fields); err != nil {
			return domain.NewStoreError("update primary manager", err)
		}
		if oldManagerID != nil && *oldManagerID != newManagerID {
			err := tx.ReportingLines().Delete(ctx, employeeID, *oldManagerID)
			if err != nil && !errors.Is(err, domain.ErrReportingLineNotFound) {
				return domain.NewStoreError("delete old primary line", err)
			}
		}
		if c.tree.IsRoot(newManagerID) || hasLine {
			return nil
		}
		line := &domain.ReportingLine{OwnerScope: c.scope, EmployeeID: employeeID, ManagerID: newManagerID}
		return domain.NewStoreError("create primary line", tx.ReportingLines().Create(ctx, line))
	})
	if err != nil {
		return domain.NewStoreError("move employee", err)
	}
	return nil
}

// validateMove проверяет перенос employeeID под newManagerID; должна вызываться под мьютексом
func (c *Chart) validateMove(employeeID, newManagerID int64) error {
	if c.tree.IsRoot(employeeID) {
		return domain.ErrRootImmutable
	}
	if _, ok := c.tree.Find(employeeID); !ok {
		return fmt.Errorf("%w: employee %d", domain.ErrEmployeeNotFound, employeeID)
	}
	if _, ok := c.tree.Find(newManagerID); !ok {
		return fmt.Errorf("%w: manager %d", domain.ErrEmployeeNotFound, newManagerID)
	}
	if c.tree.IsRoot(newManagerID) {
		return nil
	}
	if hierarchy.WouldCreateCycle(newManagerID, employeeID, c.tree) {
		return domain.ErrCycleRejected
	}
	return nil
}

// persistedManager возвращает значение primary_manager_id для записи в хранилище
func (c *Chart) persistedManager(managerID int64) any {
	if c.tree.IsRoot(managerID) {
		return nil
	}
	return managerID
}

func (c *Chart) ensure(ctx context.Context) error {
	if c.tree != nil {
		return nil
	}
	return c.resync(ctx)
}

func (c *Chart) resync(ctx context.Context) error {
	started := time.Now()

	root, err := c.roots.ResolveRoot(ctx, c.scope)
	if err != nil {
		return err
	}
	employees, err := c.store.Employees().ListByScope(ctx, c.scope)
	if err != nil {
		return domain.NewStoreError("list employees", err)
	}
	lines, err := c.store.ReportingLines().ListByScope(ctx, c.scope)
	if err != nil {
		return domain.NewStoreError("list reporting lines", err)
	}

	tree := hierarchy.Build(employees, lines, root.ID)
	for _, line := range tree.Dangling {
		c.logger.Warn("dangling reporting line skipped",
			slog.Int64("line_id", line.ID),
			slog.Int64("employee_id", line.EmployeeID),
			slog.Int64("manager_id", line.ManagerID),
		)
	}
	if len(tree.Orphans) > 0 {
		c.logger.Warn("employees with missing primary manager skipped", slog.Any("employee_ids", tree.Orphans))
	}

	c.root, c.tree = root, tree
	c.metrics.ObserveRebuild(c.scope, started, tree.Len())
	return nil
}

func validateNames(name, title string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	return nil
}

func nodeEmployee(scope string, n *hierarchy.Node) *domain.Employee {
	emp := &domain.Employee{ID: n.ID, OwnerScope: scope, Name: n.Name, Title: n.Title}
	if n.PrimaryManagerID != nil {
		managerID := *n.PrimaryManagerID
		emp.PrimaryManagerID = &managerID
	}
	return emp
}
