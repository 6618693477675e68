package feed

import (
	"sort"
	"sync"
)

// Registry holds the mounted instances by configuration name.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*Instance
}

func NewRegistry() *Registry {
	return &Registry{instances: make(map[string]*Instance)}
}

// Add registers inst under name, returning the instance it replaced.
func (r *Registry) Add(name string, inst *Instance) *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous := r.instances[name]
	r.instances[name] = inst
	return previous
}

func (r *Registry) Get(name string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[name]
	return inst, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// UnmountAll unmounts every instance and empties the registry.
func (r *Registry) UnmountAll() {
	r.mu.Lock()
	instances := r.instances
	r.instances = make(map[string]*Instance)
	r.mu.Unlock()

	for _, inst := range instances {
		inst.Unmount()
	}
}
