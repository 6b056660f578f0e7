package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino/schema"
)

var (
	// ErrDuplicateToolName is returned when a name is registered twice.
	ErrDuplicateToolName = errors.New("duplicate tool name")
	// ErrToolNotFound is returned by Get for unknown names.
	ErrToolNotFound = errors.New("tool not found")
)

// Registry maps tool names to contracts. It is filled at start-up and only
// read afterwards.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Contract
}

// NewRegistry creates a new registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Contract)}
}

// Register adds a contract under its name.
func (r *Registry) Register(c Contract) error {
	if c == nil {
		return fmt.Errorf("contract is nil")
	}
	name := c.Name()
	if name == "" {
		return fmt.Errorf("tool info missing name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateToolName, name)
	}
	r.tools[name] = c
	return nil
}

// Get retrieves a contract by name
func (r *Registry) Get(name string) (Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return c, nil
}

// List returns all contracts sorted by name.
func (r *Registry) List() []Contract {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Contract, 0, len(r.tools))
	for _, c := range r.tools {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	list := r.List()
	names := make([]string, 0, len(list))
	for _, c := range list {
		names = append(names, c.Name())
	}
	return names
}

// ToolInfos returns the input schemas to bind on a chat model.
func (r *Registry) ToolInfos(ctx context.Context) ([]*schema.ToolInfo, error) {
	list := r.List()
	infos := make([]*schema.ToolInfo, 0, len(list))
	for _, c := range list {
		info, err := c.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool %s info: %w", c.Name(), err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
