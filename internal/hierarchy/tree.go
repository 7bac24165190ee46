// Package hierarchy собирает дерево подчинения из плоских записей
// и проверяет его структурные правила.
package hierarchy

import (
	"cmp"
	"errors"
	"slices"

	"github.com/org-hierarchy-api/internal/domain"
)

// TransientRootID используется как идентификатор корня, когда контейнер
// отсутствует в хранилище. Никогда не сохраняется.
const TransientRootID int64 = -1

// Node - узел дерева подчинения
type Node struct {
	ID               int64
	Name             string
	Title            string
	PrimaryManagerID *int64
	ReportsTo        []int64
	Children         []*Node
}

// Tree - дерево с индексом узлов по id
type Tree struct {
	Root *Node

	// Dangling содержит линии подчинения, ссылающиеся на отсутствующих сотрудников
	Dangling []domain.ReportingLine
	// Orphans содержит id сотрудников, чей руководитель отсутствует
	Orphans []int64

	nodes   map[int64]*Node
	parents map[int64]int64
}

type index struct {
	byID      map[int64]*domain.Employee
	children  map[int64][]*domain.Employee
	directors []*domain.Employee
	reports   map[int64][]int64
	dangling  []domain.ReportingLine
}

// newIndex раскладывает записи за один проход
func newIndex(employees []domain.Employee, lines []domain.ReportingLine) *index {
	idx := &index{
		byID:     make(map[int64]*domain.Employee, len(employees)),
		children: make(map[int64][]*domain.Employee, len(employees)),
		reports:  make(map[int64][]int64, len(lines)),
	}

	for i := range employees {
		emp := &employees[i]
		idx.byID[emp.ID] = emp
	}

	for _, emp := range idx.ordered(employees) {
		switch {
		case emp.PrimaryManagerID != nil:
			idx.children[*emp.PrimaryManagerID] = append(idx.children[*emp.PrimaryManagerID], emp)
		case !emp.IsContainer():
			idx.directors = append(idx.directors, emp)
		}
	}

	sorted := slices.Clone(lines)
	slices.SortStableFunc(sorted, func(a, b domain.ReportingLine) int {
		return cmp.Compare(a.ID, b.ID)
	})
	for _, line := range sorted {
		_, hasEmp := idx.byID[line.EmployeeID]
		_, hasMgr := idx.byID[line.ManagerID]
		if !hasEmp || !hasMgr {
			idx.dangling = append(idx.dangling, line)
			continue
		}
		if slices.Contains(idx.reports[line.EmployeeID], line.ManagerID) {
			continue
		}
		idx.reports[line.EmployeeID] = append(idx.reports[line.EmployeeID], line.ManagerID)
	}

	// Основной руководитель всегда первый в reportsTo
	for id, managers := range idx.reports {
		emp := idx.byID[id]
		if emp.PrimaryManagerID == nil {
			continue
		}
		if pos := slices.Index(managers, *emp.PrimaryManagerID); pos > 0 {
			reordered := make([]int64, 0, len(managers))
			reordered = append(reordered, managers[pos])
			reordered = append(reordered, managers[:pos]...)
			reordered = append(reordered, managers[pos+1:]...)
			idx.reports[id] = reordered
		}
	}

	return idx
}

// ordered возвращает сотрудников в порядке возрастания id
func (idx *index) ordered(employees []domain.Employee) []*domain.Employee {
	out := make([]*domain.Employee, 0, len(employees))
	for i := range employees {
		out = append(out, &employees[i])
	}
	slices.SortStableFunc(out, func(a, b *domain.Employee) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (idx *index) node(emp *domain.Employee) *Node {
	n := &Node{
		ID:        emp.ID,
		Name:      emp.Name,
		Title:     emp.Title,
		ReportsTo: slices.Clone(idx.reports[emp.ID]),
		Children:  []*Node{},
	}
	if n.ReportsTo == nil {
		n.ReportsTo = []int64{}
	}
	if emp.PrimaryManagerID != nil {
		managerID := *emp.PrimaryManagerID
		n.PrimaryManagerID = &managerID
	}
	return n
}

func (idx *index) subtree(parentID int64, visited map[int64]bool) []*Node {
	matches := idx.children[parentID]
	nodes := make([]*Node, 0, len(matches))
	for _, emp := range matches {
		if visited[emp.ID] {
			continue
		}
		visited[emp.ID] = true

		n := idx.node(emp)
		n.Children = idx.subtree(emp.ID, visited)
		nodes = append(nodes, n)
	}
	return nodes
}

// BuildSubtree возвращает поддерево сотрудников, у которых
// primary_manager_id равен parentID. Входные срезы не изменяются.
func BuildSubtree(employees []domain.Employee, lines []domain.ReportingLine, parentID int64) []*Node {
	idx := newIndex(employees, lines)
	return idx.subtree(parentID, map[int64]bool{parentID: true})
}

// Build собирает полное дерево области: директора становятся детьми корня rootID
func Build(employees []domain.Employee, lines []domain.ReportingLine, rootID int64) *Tree {
	idx := newIndex(employees, lines)

	root := &Node{ID: rootID, ReportsTo: []int64{}, Children: []*Node{}}
	visited := map[int64]bool{rootID: true}
	for _, director := range idx.directors {
		if visited[director.ID] {
			continue
		}
		visited[director.ID] = true

		n := idx.node(director)
		n.Children = idx.subtree(director.ID, visited)
		root.Children = append(root.Children, n)
	}

	t := &Tree{Root: root, Dangling: idx.dangling}
	t.reindex()

	for _, emp := range idx.ordered(employees) {
		if _, ok := t.nodes[emp.ID]; ok || emp.IsContainer() {
			continue
		}
		t.Orphans = append(t.Orphans, emp.ID)
	}

	return t
}

// reindex перестраивает индексы узлов и родителей обходом от корня
func (t *Tree) reindex() {
	t.nodes = make(map[int64]*Node)
	t.parents = make(map[int64]int64)

	var walk func(n *Node)
	walk = func(n *Node) {
		t.nodes[n.ID] = n
		for _, child := range n.Children {
			t.parents[child.ID] = n.ID
			walk(child)
		}
	}
	walk(t.Root)
}

// Len возвращает число узлов без учёта корня
func (t *Tree) Len() int {
	return len(t.nodes) - 1
}

// Find ищет узел по id
func (t *Tree) Find(id int64) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// ParentOf возвращает id родителя в дереве
func (t *Tree) ParentOf(id int64) (int64, bool) {
	parentID, ok := t.parents[id]
	return parentID, ok
}

func (t *Tree) IsRoot(id int64) bool {
	return t.Root.ID == id
}

// Directors возвращает узлы первого уровня
func (t *Tree) Directors() []*Node {
	return t.Root.Children
}

func (t *Tree) IsDirector(id int64) bool {
	parentID, ok := t.parents[id]
	return ok && parentID == t.Root.ID
}

// IsDescendant проверяет, находится ли id в поддереве ancestorID
func (t *Tree) IsDescendant(ancestorID, id int64) bool {
	seen := make(map[int64]bool)
	current := id
	for {
		parentID, ok := t.parents[current]
		if !ok || seen[current] {
			return false
		}
		if parentID == ancestorID {
			return true
		}
		seen[current] = true
		current = parentID
	}
}

var errDuplicateNode = errors.New("node already present")

// Insert добавляет узел в детей parentID
func (t *Tree) Insert(parentID int64, n *Node) error {
	parent, ok := t.nodes[parentID]
	if !ok {
		return domain.ErrEmployeeNotFound
	}
	if _, exists := t.nodes[n.ID]; exists {
		return errDuplicateNode
	}
	if n.ReportsTo == nil {
		n.ReportsTo = []int64{}
	}
	if n.Children == nil {
		n.Children = []*Node{}
	}
	parent.Children = append(parent.Children, n)
	t.parents[n.ID] = parentID
	t.nodes[n.ID] = n
	return nil
}

// Detach удаляет узел вместе с его поддеревом
func (t *Tree) Detach(id int64) (*Node, error) {
	if id == t.Root.ID {
		return nil, domain.ErrEmployeeNotFound
	}
	n, ok := t.nodes[id]
	if !ok {
		return nil, domain.ErrEmployeeNotFound
	}
	parent := t.nodes[t.parents[id]]
	parent.Children = slices.DeleteFunc(parent.Children, func(c *Node) bool { return c.ID == id })

	var drop func(n *Node)
	drop = func(n *Node) {
		delete(t.nodes, n.ID)
		delete(t.parents, n.ID)
		for _, child := range n.Children {
			drop(child)
		}
	}
	drop(n)

	// ссылки на удалённые узлы из reportsTo остальных сотрудников
	for _, other := range t.nodes {
		other.ReportsTo = slices.DeleteFunc(other.ReportsTo, func(managerID int64) bool {
			_, present := t.nodes[managerID]
			return !present
		})
	}
	return n, nil
}

// Move переносит узел под newParentID, сохраняя его поддерево
func (t *Tree) Move(id, newParentID int64) error {
	n, ok := t.nodes[id]
	if !ok || id == t.Root.ID {
		return domain.ErrEmployeeNotFound
	}
	newParent, ok := t.nodes[newParentID]
	if !ok {
		return domain.ErrEmployeeNotFound
	}
	if newParentID == id || t.IsDescendant(id, newParentID) {
		return domain.ErrCycleRejected
	}

	oldParent := t.nodes[t.parents[id]]
	oldParent.Children = slices.DeleteFunc(oldParent.Children, func(c *Node) bool { return c.ID == id })
	newParent.Children = append(newParent.Children, n)
	t.parents[id] = newParentID

	if newParentID == t.Root.ID {
		n.PrimaryManagerID = nil
	} else {
		managerID := newParentID
		n.PrimaryManagerID = &managerID
	}
	return nil
}

// Clone возвращает глубокую копию дерева
func (t *Tree) Clone() *Tree {
	var clone func(n *Node) *Node
	clone = func(n *Node) *Node {
		c := &Node{
			ID:        n.ID,
			Name:      n.Name,
			Title:     n.Title,
			ReportsTo: slices.Clone(n.ReportsTo),
			Children:  make([]*Node, 0, len(n.Children)),
		}
		if n.PrimaryManagerID != nil {
			managerID := *n.PrimaryManagerID
			c.PrimaryManagerID = &managerID
		}
		for _, child := range n.Children {
			c.Children = append(c.Children, clone(child))
		}
		return c
	}

	out := &Tree{
		Root:     clone(t.Root),
		Dangling: slices.Clone(t.Dangling),
		Orphans:  slices.Clone(t.Orphans),
	}
	out.reindex()
	return out
}

// Edge - ребро manager -> employee
type Edge struct {
	ManagerID  int64
	EmployeeID int64
}

// Edges возвращает объединение первичных и дополнительных рёбер без учёта корня
func (t *Tree) Edges() []Edge {
	seen := make(map[Edge]bool)
	var edges []Edge
	add := func(e Edge) {
		if !seen[e] {
			seen[e] = true
			edges = append(edges, e)
		}
	}

	var walk func(n *Node)
	walk = func(n *Node) {
		for _, child := range n.Children {
			if n.ID != t.Root.ID {
				add(Edge{ManagerID: n.ID, EmployeeID: child.ID})
			}
			for _, managerID := range child.ReportsTo {
				add(Edge{ManagerID: managerID, EmployeeID: child.ID})
			}
			walk(child)
		}
	}
	walk(t.Root)
	return edges
}
