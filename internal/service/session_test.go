package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/org-hierarchy-api/internal/dto"
	"github.com/org-hierarchy-api/internal/repository"
)

func newClockedService(t *testing.T, idleTimeout time.Duration) (*orgChartService, *time.Time) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := NewOrgChartService(repository.NewMemoryStore(), nil, logger, idleTimeout).(*orgChartService)
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestOrgChartService_EvictsIdleSessions(t *testing.T) {
	ctx := context.Background()
	svc, now := newClockedService(t, time.Minute)

	alice, err := svc.AddEmployee(ctx, "acme", &dto.CreateEmployeeRequest{Name: "Alice", Title: "CEO"})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	evicted := svc.sessions["acme"].chart

	*now = now.Add(30 * time.Second)
	if _, err := svc.GetChart(ctx, "globex"); err != nil {
		t.Fatalf("get chart failed: %v", err)
	}
	*now = now.Add(45 * time.Second)
	if _, err := svc.GetChart(ctx, "initech"); err != nil {
		t.Fatalf("get chart failed: %v", err)
	}

	if _, ok := svc.sessions["acme"]; ok {
		t.Errorf("expected idle acme session to be evicted")
	}
	if _, ok := svc.sessions["globex"]; !ok {
		t.Errorf("expected recently used globex session to stay")
	}
	if len(svc.sessions) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(svc.sessions))
	}

	// Выгруженная область заново читается из хранилища
	view, err := svc.GetChart(ctx, "acme")
	if err != nil {
		t.Fatalf("get chart failed: %v", err)
	}
	if svc.sessions["acme"].chart == evicted {
		t.Errorf("expected a fresh session after eviction")
	}
	if !view.Tree.IsDirector(alice.ID) {
		t.Errorf("expected Alice to be reloaded as director")
	}
}

func TestOrgChartService_ZeroIdleTimeoutKeepsSessions(t *testing.T) {
	ctx := context.Background()
	svc, now := newClockedService(t, 0)

	if _, err := svc.GetChart(ctx, "acme"); err != nil {
		t.Fatalf("get chart failed: %v", err)
	}
	*now = now.Add(24 * time.Hour)
	if _, err := svc.GetChart(ctx, "globex"); err != nil {
		t.Fatalf("get chart failed: %v", err)
	}
	if len(svc.sessions) != 2 {
		t.Errorf("expected sessions to be kept, got %d", len(svc.sessions))
	}
}
