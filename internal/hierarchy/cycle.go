package hierarchy

// AllManagersOf возвращает всех прямых и косвенных руководителей id:
// записи reportsTo и основного руководителя. Корень в результат не входит.
func (t *Tree) AllManagersOf(id int64) map[int64]struct{} {
	managers := make(map[int64]struct{})
	queue := t.managersOf(id)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if _, seen := managers[current]; seen {
			continue
		}
		managers[current] = struct{}{}
		queue = append(queue, t.managersOf(current)...)
	}
	return managers
}

func (t *Tree) managersOf(id int64) []int64 {
	var out []int64
	if parentID, ok := t.parents[id]; ok && parentID != t.Root.ID {
		out = append(out, parentID)
	}
	if n, ok := t.nodes[id]; ok {
		for _, managerID := range n.ReportsTo {
			if managerID != t.Root.ID {
				out = append(out, managerID)
			}
		}
	}
	return out
}

// WouldCreateCycle сообщает, замкнёт ли ребро managerID -> employeeID цикл
func WouldCreateCycle(managerID, employeeID int64, t *Tree) bool {
	if managerID == employeeID {
		return true
	}
	_, found := t.AllManagersOf(managerID)[employeeID]
	return found
}

// HasCycle проверяет объединение первичных и дополнительных рёбер на цикл
func (t *Tree) HasCycle() bool {
	const (
		unvisited = iota
		inStack
		done
	)
	adj := make(map[int64][]int64)
	for _, e := range t.Edges() {
		adj[e.ManagerID] = append(adj[e.ManagerID], e.EmployeeID)
	}

	state := make(map[int64]int)
	var visit func(id int64) bool
	visit = func(id int64) bool {
		state[id] = inStack
		for _, next := range adj[id] {
			switch state[next] {
			case inStack:
				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		state[id] = done
		return false
	}

	for id := range adj {
		if state[id] == unvisited && visit(id) {
			return true
		}
	}
	return false
}
