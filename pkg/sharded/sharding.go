// Package sharded provides string-keyed sets and maps split into independently
// locked shards, so many goroutines can insert, probe and erase distinct keys
// without contending on one lock.
package sharded

import (
	"fmt"
	"hash/fnv"
)

// DefaultShards is the shard count used by the New* constructors.
const DefaultShards = 64

// getShardIndex calculates the shard index for a given key using FNV-1a.
// numShards must be a power of 2 for the bitwise AND to act as a modulus.
func getShardIndex(key string, numShards int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() & uint32(numShards-1))
}

func checkShardCount(numShards int) {
	if numShards <= 0 || numShards&(numShards-1) != 0 {
		panic(fmt.Sprintf("sharded: shard count %d is not a power of two", numShards))
	}
}
