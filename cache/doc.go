// Package cache provides the two-level, reclaimable cache behind proxy
// generation.
//
// A Registry maps each scope to a KeyCache, and a KeyCache maps an ordered
// capability-set Key to a generated value. Neither level keeps its scope or
// its values reachable: both are held through weak pointers and their entries
// disappear after the garbage collector reclaims them.
//
// Lookups on an existing KeyCache never touch the registry lock. Creating the
// first KeyCache for a scope takes the registry's exclusive lock briefly and
// tolerates a benign duplicate construction when two first-time callers race.
package cache
