package repositories

// Wait blocks until buffered cache writes are applied.
func (c *CachedUsers) Wait() {
	c.cache.Wait()
}
