// Package stocklock serializes concurrent mutations of individual
// (store, item) stock rows. SQLite has no SELECT ... FOR UPDATE, so the
// row lock a sale holds while it decrements stock is an in-process
// keyed mutex instead.
package stocklock

import (
	"slices"
	"sync"
)

type key struct {
	storeID int64
	itemID  int64
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// Keeper hands out per-(store,item) locks. Entries are created on demand
// and dropped once the last holder releases them.
type Keeper struct {
	mu    sync.Mutex
	locks map[key]*entry
}

func NewKeeper() *Keeper {
	return &Keeper{locks: make(map[key]*entry)}
}

// Acquire locks every (storeID, itemID) pair and returns a release
// function. Duplicate item ids are coalesced and keys are taken in
// sorted order, so a caller listing the same item twice cannot deadlock
// against itself and two callers locking overlapping sets cannot
// deadlock against each other.
func (k *Keeper) Acquire(storeID int64, itemIDs []int64) (release func()) {
	distinct := make([]int64, 0, len(itemIDs))
	seen := make(map[int64]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}
	slices.Sort(distinct)

	entries := make([]*entry, 0, len(distinct))
	for _, id := range distinct {
		e := k.checkout(key{storeID: storeID, itemID: id})
		e.mu.Lock()
		entries = append(entries, e)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release in reverse acquisition order.
			for i := len(entries) - 1; i >= 0; i-- {
				entries[i].mu.Unlock()
				k.checkin(key{storeID: storeID, itemID: distinct[i]})
			}
		})
	}
}

func (k *Keeper) checkout(kk key) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.locks[kk]
	if !ok {
		e = &entry{}
		k.locks[kk] = e
	}
	e.refs++
	return e
}

func (k *Keeper) checkin(kk key) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.locks[kk]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(k.locks, kk)
	}
}
