package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/org-hierarchy-api/internal/domain"
	"github.com/org-hierarchy-api/internal/dto"
	"github.com/org-hierarchy-api/internal/metrics"
	"github.com/org-hierarchy-api/internal/repository"
	"github.com/org-hierarchy-api/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOrgChartService_ScopeRequired(t *testing.T) {
	svc := service.NewOrgChartService(repository.NewMemoryStore(), nil, testLogger(), 0)

	if _, err := svc.GetChart(context.Background(), "  "); !errors.Is(err, domain.ErrScopeRequired) {
		t.Errorf("expected ErrScopeRequired, got %v", err)
	}
}

func TestOrgChartService_DefaultsToRoot(t *testing.T) {
	ctx := context.Background()
	svc := service.NewOrgChartService(repository.NewMemoryStore(), nil, testLogger(), 0)

	alice, err := svc.AddEmployee(ctx, "acme", &dto.CreateEmployeeRequest{Name: "Alice", Title: "CEO"})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	bob, err := svc.AddEmployee(ctx, "acme", &dto.CreateEmployeeRequest{ParentID: alice.ID, Name: "Bob", Title: "CTO"})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := svc.MoveEmployee(ctx, "acme", bob.ID, &dto.MoveEmployeeRequest{}); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	view, err := svc.GetChart(ctx, "acme")
	if err != nil {
		t.Fatalf("get chart failed: %v", err)
	}
	if len(view.Tree.Directors()) != 2 {
		t.Errorf("expected both employees to be directors, got %d", len(view.Tree.Directors()))
	}
}

func TestOrgChartService_ScopesAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc := service.NewOrgChartService(repository.NewMemoryStore(), nil, testLogger(), 0)

	var wg sync.WaitGroup
	for i := range 4 {
		scope := fmt.Sprintf("tenant-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range i + 1 {
				if _, err := svc.AddEmployee(ctx, scope, &dto.CreateEmployeeRequest{Name: fmt.Sprintf("E%d", j), Title: "x"}); err != nil {
					t.Errorf("%s: add failed: %v", scope, err)
				}
			}
		}()
	}
	wg.Wait()

	for i := range 4 {
		scope := fmt.Sprintf("tenant-%d", i)
		view, err := svc.GetChart(ctx, scope)
		if err != nil {
			t.Fatalf("%s: get chart failed: %v", scope, err)
		}
		if view.Tree.Len() != i+1 {
			t.Errorf("%s: expected %d employees, got %d", scope, i+1, view.Tree.Len())
		}
		if view.Root.Transient {
			t.Errorf("%s: expected persisted root", scope)
		}
	}
}

func TestOrgChartService_ReinitializeDoesNotTouchOtherScopes(t *testing.T) {
	ctx := context.Background()
	svc := service.NewOrgChartService(repository.NewMemoryStore(), nil, testLogger(), 0)

	svc.AddEmployee(ctx, "acme", &dto.CreateEmployeeRequest{Name: "Alice", Title: "CEO"})
	svc.AddEmployee(ctx, "globex", &dto.CreateEmployeeRequest{Name: "Hank", Title: "CEO"})

	view, err := svc.Reinitialize(ctx, "acme")
	if err != nil {
		t.Fatalf("reinitialize failed: %v", err)
	}
	if view.Tree.Len() != 0 {
		t.Errorf("expected empty scope, got %d", view.Tree.Len())
	}
	other, _ := svc.GetChart(ctx, "globex")
	if other.Tree.Len() != 1 {
		t.Errorf("expected other scope untouched, got %d", other.Tree.Len())
	}
}

func TestOrgChartService_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	svc := service.NewOrgChartService(repository.NewMemoryStore(), m, testLogger(), 0)

	alice, _ := svc.AddEmployee(ctx, "acme", &dto.CreateEmployeeRequest{Name: "Alice", Title: "CEO"})
	if err := svc.RemoveEmployee(ctx, "acme", alice.ID); !errors.Is(err, domain.ErrLastDirector) {
		t.Fatalf("expected ErrLastDirector, got %v", err)
	}

	if got := testutil.ToFloat64(m.Operations.WithLabelValues("add_employee", "ok")); got != 1 {
		t.Errorf("expected 1 successful add, got %v", got)
	}
	if got := testutil.ToFloat64(m.Operations.WithLabelValues("remove_employee", "last_director")); got != 1 {
		t.Errorf("expected 1 rejected remove, got %v", got)
	}

	if _, err := svc.Resync(ctx, "acme"); err != nil {
		t.Fatalf("resync failed: %v", err)
	}
	if got := testutil.ToFloat64(m.TreeSize.WithLabelValues("acme")); got != 1 {
		t.Errorf("expected tree size 1 after resync, got %v", got)
	}
}
