package game

import "sync"

// SceneCache maps a scene tag to a generated skybox file URL. Entries
// live for one started game and are discarded wholesale on end. Deferred
// skybox completions land on their own goroutines, hence the mutex.
type SceneCache struct {
	mu     sync.RWMutex
	scenes map[string]string
}

func NewSceneCache() *SceneCache {
	return &SceneCache{scenes: make(map[string]string)}
}

func (c *SceneCache) Get(scene string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	url, ok := c.scenes[scene]
	return url, ok
}

func (c *SceneCache) Set(scene, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scenes[scene] = url
}

func (c *SceneCache) Has(scene string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.scenes[scene]
	return ok
}

func (c *SceneCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scenes)
}

func (c *SceneCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scenes = make(map[string]string)
}
