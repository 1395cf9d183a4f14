package device

import (
	"fmt"
	"slices"
	"sync"
)

// Constructor 根据参数创建后端实例
type Constructor func(params map[string]any) (Backend, error)

// Registry 后端类型注册表
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry 创建注册表，模拟后端总是可用
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]Constructor)}
	r.Register(SimulatedName, func(map[string]any) (Backend, error) {
		return NewSimulatedBackend(), nil
	})
	return r
}

// Register 注册后端类型，同名会被覆盖
func (r *Registry) Register(name string, constructor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = constructor
}

// Create 创建后端实例
func (r *Registry) Create(name string, params map[string]any) (Backend, error) {
	r.mu.RLock()
	constructor, ok := r.constructors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("未知的后端类型: %s", name)
	}
	return constructor(params)
}

// Supported 已注册的后端类型（升序）
func (r *Registry) Supported() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
