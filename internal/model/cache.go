package model

import "sync"

type modelLoader interface {
	Load() (*Model, error)
}

// Cache keeps one model for the whole process. Access is serialised: a caller
// holds the lock from Acquire until it calls release, so the interpreter never
// sees concurrent invocations. A failed load is not remembered and the next
// Acquire tries again.
type Cache struct {
	loader modelLoader

	mu    sync.Mutex
	model *Model
}

func NewCache(loader modelLoader) *Cache {
	return &Cache{loader: loader}
}

func (c *Cache) Acquire() (*Model, func(), error) {
	c.mu.Lock()

	if c.model == nil {
		m, err := c.loader.Load()
		if err != nil {
			c.mu.Unlock()
			return nil, nil, err
		}
		c.model = m
	}

	return c.model, c.mu.Unlock, nil
}

func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.model == nil {
		return nil
	}
	err := c.model.Close()
	c.model = nil
	return err
}
