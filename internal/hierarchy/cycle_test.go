package hierarchy_test

import (
	"testing"

	"github.com/org-hierarchy-api/internal/domain"
	"github.com/org-hierarchy-api/internal/hierarchy"
)

func TestWouldCreateCycle(t *testing.T) {
	employees, lines := sampleRows()
	tree := hierarchy.Build(employees, lines, 1)

	tests := []struct {
		name       string
		managerID  int64
		employeeID int64
		want       bool
	}{
		{"direct report cannot manage its manager", 3, 2, true},
		{"transitive report cannot manage ancestor", 5, 2, true},
		{"secondary manager path", 5, 4, true},
		{"self link", 3, 3, true},
		{"unrelated director", 4, 3, false},
		{"manager over existing report", 2, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hierarchy.WouldCreateCycle(tt.managerID, tt.employeeID, tree); got != tt.want {
				t.Errorf("WouldCreateCycle(%d, %d) = %v, want %v", tt.managerID, tt.employeeID, got, tt.want)
			}
		})
	}
}

func TestAllManagersOf(t *testing.T) {
	employees, lines := sampleRows()
	tree := hierarchy.Build(employees, lines, 1)

	managers := tree.AllManagersOf(5)
	for _, id := range []int64{2, 3, 4} {
		if _, ok := managers[id]; !ok {
			t.Errorf("expected %d among managers of Dan", id)
		}
	}
	if _, ok := managers[1]; ok {
		t.Error("root must not appear among managers")
	}
	if len(managers) != 3 {
		t.Errorf("expected 3 managers, got %d", len(managers))
	}
}

func TestAllManagersOf_MalformedInputTerminates(t *testing.T) {
	employees := []domain.Employee{
		{ID: 1},
		{ID: 2, Name: "A", Title: "x"},
		{ID: 3, Name: "B", Title: "x", PrimaryManagerID: ptr(2)},
	}
	lines := []domain.ReportingLine{
		{ID: 1, EmployeeID: 3, ManagerID: 2},
		{ID: 2, EmployeeID: 2, ManagerID: 3},
	}
	tree := hierarchy.Build(employees, lines, 1)

	managers := tree.AllManagersOf(3)
	if len(managers) != 2 {
		t.Errorf("expected closure {2, 3}, got %v", managers)
	}
	if !tree.HasCycle() {
		t.Error("expected malformed input to be reported as cyclic")
	}
}

func TestHasCycle_ValidTree(t *testing.T) {
	employees, lines := sampleRows()
	tree := hierarchy.Build(employees, lines, 1)
	if tree.HasCycle() {
		t.Error("expected no cycle")
	}
}
