package domain

import "fmt"

// CacheNamespace enumerates the cache key scopes
type CacheNamespace string

const (
	CacheCycles CacheNamespace = "cycles" // scoped by chama
	CacheRoster CacheNamespace = "roster" // scoped by cycle
)

// Key builds the cache key for id within the namespace
func (n CacheNamespace) Key(id uint) string {
	return fmt.Sprintf("%s:%d", n, id)
}

// CyclesKey is the cycle-list key of a chama
func CyclesKey(chamaID uint) string {
	return CacheCycles.Key(chamaID)
}

// RosterKey is the roster key of a cycle
func RosterKey(cycleID uint) string {
	return CacheRoster.Key(cycleID)
}
