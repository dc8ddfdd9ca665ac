// Package cache provides a generic LRU cache with a hard entry limit.
//
//	c := cache.New[string, []uint32](64)
//	words, err := c.GetOrLoad(src, compile)
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
