/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package stringPool is the VM-wide intern table mapping class/method/field
// name strings to stable uint32 indices, so constant-pool entries and class
// descriptors can carry a small index instead of repeating the same class
// name string thousands of times across the method area.
package stringPool

import (
	"sync"

	"github.com/dolthub/swiss"
	"vesper/types"
)

type pool struct {
	mu     sync.RWMutex
	byStr  *swiss.Map[string, uint32]
	byIdx  []string
}

var global = newPool()

func newPool() *pool {
	p := &pool{byStr: swiss.NewMap[string, uint32](64)}
	// indices 0 and 1 are reserved sentinels (types.ObjectPoolStringIndex,
	// types.StringPoolStringIndex) so every other index is >= 2.
	p.byIdx = append(p.byIdx, types.ObjectClassName, types.StringClassName)
	p.byStr.Put(types.ObjectClassName, types.ObjectPoolStringIndex)
	p.byStr.Put(types.StringClassName, types.StringPoolStringIndex)
	return p
}

// GetStringIndex interns s, returning its stable index (creating one on
// first use).
func GetStringIndex(s string) uint32 {
	global.mu.RLock()
	if idx, ok := global.byStr.Get(s); ok {
		global.mu.RUnlock()
		return idx
	}
	global.mu.RUnlock()

	global.mu.Lock()
	defer global.mu.Unlock()
	if idx, ok := global.byStr.Get(s); ok {
		return idx
	}
	idx := uint32(len(global.byIdx))
	global.byIdx = append(global.byIdx, s)
	global.byStr.Put(s, idx)
	return idx
}

// GetStringPointer returns a pointer to the interned string at idx, or nil
// if idx is out of range.
func GetStringPointer(idx uint32) *string {
	global.mu.RLock()
	defer global.mu.RUnlock()
	if int(idx) >= len(global.byIdx) {
		return nil
	}
	return &global.byIdx[idx]
}

// GetStringPoolSize returns the number of interned strings.
func GetStringPoolSize() uint32 {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return uint32(len(global.byIdx))
}

// EmptyStringPool resets the pool to its initial state. Used by tests.
func EmptyStringPool() {
	fresh := newPool()
	global.mu.Lock()
	defer global.mu.Unlock()
	global.byStr = fresh.byStr
	global.byIdx = fresh.byIdx
}
