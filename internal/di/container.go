// internal/di/container.go
package di

import (
	"fmt"
	"sort"
	"sync"
)

// Container 以名称索引服务实例，聚合各服务的装配关系
type Container struct {
	mu       sync.RWMutex
	services map[string]interface{}
}

var (
	globalOnce      sync.Once
	globalContainer *Container
)

// NewContainer 创建一个空容器
func NewContainer() *Container {
	return &Container{
		services: make(map[string]interface{}),
	}
}

// GetContainer 返回进程级容器单例
func GetContainer() *Container {
	globalOnce.Do(func() {
		globalContainer = NewContainer()
	})
	return globalContainer
}

// Register 注册或覆盖一个服务实例
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	c.services[name] = service
	c.mu.Unlock()
}

// Get 按名称获取服务实例，未注册时返回nil
func (c *Container) Get(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services[name]
}

// GetTyped 按名称获取服务，未注册时返回给定的默认值
func (c *Container) GetTyped(name string, defaultVal interface{}) interface{} {
	if service := c.Get(name); service != nil {
		return service
	}
	return defaultVal
}

// MustGet 按名称获取服务，未注册时panic，用于启动期的硬依赖
func (c *Container) MustGet(name string) interface{} {
	service := c.Get(name)
	if service == nil {
		panic(fmt.Sprintf("服务未注册: %s", name))
	}
	return service
}

// Has 检查服务是否已注册
func (c *Container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.services[name]
	return exists
}

// Remove 注销一个服务
func (c *Container) Remove(name string) {
	c.mu.Lock()
	delete(c.services, name)
	c.mu.Unlock()
}

// Clear 注销所有服务，测试里用于隔离装配状态
func (c *Container) Clear() {
	c.mu.Lock()
	c.services = make(map[string]interface{})
	c.mu.Unlock()
}

// GetNames 返回已注册服务名称的有序列表
func (c *Container) GetNames() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	c.mu.RUnlock()

	sort.Strings(names)
	return names
}
