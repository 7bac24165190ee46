package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/org-hierarchy-api/internal/domain"
	"github.com/org-hierarchy-api/internal/dto"
	"github.com/org-hierarchy-api/internal/metrics"
	"github.com/org-hierarchy-api/internal/repository"
)

// OrgChartService определяет интерфейс бизнес-логики оргструктуры
type OrgChartService interface {
	GetChart(ctx context.Context, scope string) (ChartView, error)
	Resync(ctx context.Context, scope string) (ChartView, error)
	Reinitialize(ctx context.Context, scope string) (ChartView, error)
	AddEmployee(ctx context.Context, scope string, req *dto.CreateEmployeeRequest) (*domain.Employee, error)
	UpdateEmployee(ctx context.Context, scope string, id int64, req *dto.UpdateEmployeeRequest) (*domain.Employee, error)
	RemoveEmployee(ctx context.Context, scope string, id int64) error
	MoveEmployee(ctx context.Context, scope string, id int64, req *dto.MoveEmployeeRequest) error
	AddReportingLine(ctx context.Context, scope string, req *dto.ReportingLineRequest) error
	RemoveReportingLine(ctx context.Context, scope string, managerID, employeeID int64) error
}

type orgChartService struct {
	store   repository.Store
	metrics *metrics.Metrics
	logger  *slog.Logger

	// idleTimeout - через сколько неиспользуемая сессия выгружается; 0 отключает выгрузку
	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	chart    *Chart
	lastUsed time.Time
}

// NewOrgChartService создаёт новый экземпляр сервиса
func NewOrgChartService(store repository.Store, m *metrics.Metrics, logger *slog.Logger, idleTimeout time.Duration) OrgChartService {
	return &orgChartService{
		store:       store,
		metrics:     m,
		logger:      logger,
		idleTimeout: idleTimeout,
		now:         time.Now,
		sessions:    make(map[string]*session),
	}
}

// chart возвращает сессию области, создавая её при первом обращении.
// Попутно выгружает сессии, простаивающие дольше idleTimeout: после выгрузки
// дерево области заново читается из хранилища.
func (s *orgChartService) chart(scope string) (*Chart, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, domain.ErrScopeRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictIdle(now, scope)

	sess, ok := s.sessions[scope]
	if !ok {
		sess = &session{chart: NewChart(scope, s.store, s.metrics, s.logger)}
		s.sessions[scope] = sess
	}
	sess.lastUsed = now
	return sess.chart, nil
}

// evictIdle удаляет простаивающие сессии кроме keep; вызывается под мьютексом
func (s *orgChartService) evictIdle(now time.Time, keep string) {
	if s.idleTimeout <= 0 {
		return
	}
	for scope, sess := range s.sessions {
		if scope == keep || now.Sub(sess.lastUsed) <= s.idleTimeout {
			continue
		}
		delete(s.sessions, scope)
		s.logger.Debug("idle session evicted", slog.String("scope", scope), slog.Duration("idle", now.Sub(sess.lastUsed)))
	}
}

func (s *orgChartService) GetChart(ctx context.Context, scope string) (ChartView, error) {
	c, err := s.chart(scope)
	if err != nil {
		return ChartView{}, err
	}
	return c.Snapshot(ctx)
}

func (s *orgChartService) Resync(ctx context.Context, scope string) (ChartView, error) {
	c, err := s.chart(scope)
	if err != nil {
		return ChartView{}, err
	}
	if err := c.Resync(ctx); err != nil {
		return ChartView{}, err
	}
	return c.Snapshot(ctx)
}

func (s *orgChartService) Reinitialize(ctx context.Context, scope string) (ChartView, error) {
	c, err := s.chart(scope)
	if err != nil {
		return ChartView{}, err
	}
	if err := c.Reinitialize(ctx); err != nil {
		return ChartView{}, err
	}
	return c.Snapshot(ctx)
}

func (s *orgChartService) AddEmployee(ctx context.Context, scope string, req *dto.CreateEmployeeRequest) (*domain.Employee, error) {
	c, err := s.chart(scope)
	if err != nil {
		return nil, err
	}

	// Без parent_id сотрудник добавляется под корень
	parentID := req.ParentID
	if parentID == 0 {
		if parentID, err = c.RootID(ctx); err != nil {
			return nil, err
		}
	}
	return c.AddEmployee(ctx, parentID, req.Name, req.Title, req.IsDirector)
}

func (s *orgChartService) UpdateEmployee(ctx context.Context, scope string, id int64, req *dto.UpdateEmployeeRequest) (*domain.Employee, error) {
	c, err := s.chart(scope)
	if err != nil {
		return nil, err
	}
	return c.UpdateEmployee(ctx, id, req.Name, req.Title)
}

func (s *orgChartService) RemoveEmployee(ctx context.Context, scope string, id int64) error {
	c, err := s.chart(scope)
	if err != nil {
		return err
	}
	return c.RemoveEmployee(ctx, id)
}

func (s *orgChartService) MoveEmployee(ctx context.Context, scope string, id int64, req *dto.MoveEmployeeRequest) error {
	c, err := s.chart(scope)
	if err != nil {
		return err
	}

	managerID := req.ManagerID
	if managerID == 0 {
		if managerID, err = c.RootID(ctx); err != nil {
			return err
		}
	}
	return c.MoveEmployeeToManager(ctx, id, managerID)
}

func (s *orgChartService) AddReportingLine(ctx context.Context, scope string, req *dto.ReportingLineRequest) error {
	c, err := s.chart(scope)
	if err != nil {
		return err
	}
	return c.AddReportingLine(ctx, req.ManagerID, req.EmployeeID)
}

func (s *orgChartService) RemoveReportingLine(ctx context.Context, scope string, managerID, employeeID int64) error {
	c, err := s.chart(scope)
	if err != nil {
		return err
	}
	return c.RemoveReportingLine(ctx, managerID, employeeID)
}
