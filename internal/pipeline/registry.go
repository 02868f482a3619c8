package pipeline

import (
	"fmt"
	"sync"
)

// Registry holds the static stage graph
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
	order  []string // registration order
}

// NewRegistry creates an empty stage registry
func NewRegistry() *Registry {
	return &Registry{
		stages: make(map[string]Stage),
		order:  make([]string, 0),
	}
}

// Register adds a stage to the registry
func (r *Registry) Register(stage Stage) error {
	if stage == nil {
		return fmt.Errorf("cannot register nil stage")
	}

	id := stage.ID()
	if id == "" {
		return fmt.Errorf("stage ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stages[id]; exists {
		return fmt.Errorf("stage with ID %s already registered", id)
	}

	r.stages[id] = stage
	r.order = append(r.order, id)
	return nil
}

// Get retrieves a stage by ID
func (r *Registry) Get(id string) (Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stage, exists := r.stages[id]
	if !exists {
		return nil, fmt.Errorf("stage with ID %s not found", id)
	}
	return stage, nil
}

// Has checks if a stage is registered
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.stages[id]
	return exists
}

// List returns all registered stages in registration order
func (r *Registry) List() []Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stages := make([]Stage, 0, len(r.order))
	for _, id := range r.order {
		stages = append(stages, r.stages[id])
	}
	return stages
}

// Count returns the number of registered stages
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stages)
}

// DependencyOrder returns the stages in topological order.
// Stages that become ready together keep their registration order.
func (r *Registry) DependencyOrder() ([]Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	position := make(map[string]int, len(r.order))
	for i, id := range r.order {
		position[id] = i
	}

	dependents := make(map[string][]string, len(r.stages))
	inDegree := make(map[string]int, len(r.stages))
	for _, id := range r.order {
		for _, dep := range r.stages[id].Dependencies() {
			if _, exists := r.stages[dep]; !exists {
				return nil, fmt.Errorf("stage %s depends on non-existent stage %s", id, dep)
			}
			dependents[dep] = append(dependents[dep], id)
			inDegree[id]++
		}
	}

	// Kahn's algorithm; the ready set is kept sorted by registration position
	ready := make([]string, 0)
	for _, id := range r.order {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	ordered := make([]Stage, 0, len(r.stages))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		ordered = append(ordered, r.stages[current])

		for _, dependent := range dependents[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = insertByPosition(ready, dependent, position)
			}
		}
	}

	if len(ordered) != len(r.stages) {
		return nil, fmt.Errorf("dependency cycle detected")
	}
	return ordered, nil
}

func insertByPosition(ready []string, id string, position map[string]int) []string {
	i := len(ready)
	for j, other := range ready {
		if position[id] < position[other] {
			i = j
			break
		}
	}
	ready = append(ready, "")
	copy(ready[i+1:], ready[i:])
	ready[i] = id
	return ready
}

// Validate checks that every dependency exists and the graph is acyclic
func (r *Registry) Validate() error {
	_, err := r.DependencyOrder()
	return err
}

// Dependents returns the stages that directly depend on the given stage
func (r *Registry) Dependents(stageID string) []Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dependents := make([]Stage, 0)
	for _, id := range r.order {
		for _, dep := range r.stages[id].Dependencies() {
			if dep == stageID {
				dependents = append(dependents, r.stages[id])
				break
			}
		}
	}
	return dependents
}
