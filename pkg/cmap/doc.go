// Package cmap is a sharded concurrent map.
//
// Keys are spread over a fixed number of shards, each behind its own
// RWMutex, so readers and writers on different characters or sessions
// rarely contend. Iteration locks one shard at a time and therefore sees
// a view that may mix states from before and after concurrent writes.
package cmap
