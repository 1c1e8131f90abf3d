package graph

import (
	"fmt"
	"sort"
)

// Graph represents a directed acyclic graph of tasks
type Graph struct {
	tasks []Task
	index map[string]int      // task ID -> position in tasks
	edges map[string][]string // task ID -> list of dependency task IDs
}

// NewGraph creates a new empty graph
func NewGraph() *Graph {
	return &Graph{
		tasks: make([]Task, 0),
		index: make(map[string]int),
		edges: make(map[string][]string),
	}
}

// AddTask adds a task to the graph
func (g *Graph) AddTask(task Task) error {
	if _, exists := g.index[task.ID()]; exists {
		return fmt.Errorf("task with ID %s already exists", task.ID())
	}

	g.index[task.ID()] = len(g.tasks)
	g.tasks = append(g.tasks, task)

	var depIDs []string
	for _, dep := range task.Dependencies() {
		depIDs = append(depIDs, dep.ID())
	}
	g.edges[task.ID()] = depIDs

	return nil
}

// GetTask returns a task by its ID
func (g *Graph) GetTask(id string) (Task, error) {
	if i, ok := g.index[id]; ok {
		return g.tasks[i], nil
	}
	return nil, fmt.Errorf("task with ID %s not found", id)
}

// GetTasks returns all tasks in the graph in insertion order
func (g *Graph) GetTasks() []Task {
	return g.tasks
}

// TopologicalSort returns tasks in topological order (dependencies first).
// Ties are broken by insertion order so the result is stable across runs.
func (g *Graph) TopologicalSort() ([]Task, error) {
	// Kahn's algorithm
	inDegree := make(map[string]int)
	dependents := make(map[string][]string)

	for _, task := range g.tasks {
		id := task.ID()
		for _, dep := range g.edges[id] {
			if _, ok := g.index[dep]; !ok {
				return nil, fmt.Errorf("task %s depends on %s which is not in the graph", id, dep)
			}
			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []string
	for _, task := range g.tasks {
		if inDegree[task.ID()] == 0 {
			queue = append(queue, task.ID())
		}
	}

	var result []Task
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, g.tasks[g.index[current]])

		var ready []string
		for _, other := range dependents[current] {
			inDegree[other]--
			if inDegree[other] == 0 {
				ready = append(ready, other)
			}
		}
		sort.Slice(ready, func(i, j int) bool { return g.index[ready[i]] < g.index[ready[j]] })
		queue = append(queue, ready...)
	}

	if len(result) != len(g.tasks) {
		return nil, fmt.Errorf("cycle detected in task graph")
	}

	return result, nil
}

// Select creates a new graph containing the named tasks and all their dependencies
func (g *Graph) Select(ids ...string) (*Graph, error) {
	selected := NewGraph()
	visited := make(map[string]bool)

	var add func(task Task) error
	add = func(task Task) error {
		if visited[task.ID()] {
			return nil
		}
		visited[task.ID()] = true

		for _, dep := range task.Dependencies() {
			if err := add(dep); err != nil {
				return err
			}
		}
		return selected.AddTask(task)
	}

	for _, id := range ids {
		task, err := g.GetTask(id)
		if err != nil {
			return nil, err
		}
		if err := add(task); err != nil {
			return nil, err
		}
	}

	return selected, nil
}
