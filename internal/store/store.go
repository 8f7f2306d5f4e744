package store

import (
	"fmt"
	"sort"

	"github.com/nao1215/relcrawl/internal/model"
)

// ItemStore holds the primary and related partitions.
type ItemStore struct {
	parts map[model.Partition]*partition
}

// partition is one id-keyed set with first-seen ordering.
type partition struct {
	items map[string]model.Item
	seen  map[string]uint64
	seq   uint64
}

func newPartition() *partition {
	return &partition{
		items: make(map[string]model.Item),
		seen:  make(map[string]uint64),
	}
}

// New returns an empty ItemStore.
func New() *ItemStore {
	s := &ItemStore{parts: make(map[model.Partition]*partition, len(model.Partitions))}
	for _, p := range model.Partitions {
		s.parts[p] = newPartition()
	}
	return s
}

func (s *ItemStore) partition(p model.Partition) (*partition, error) {
	part, ok := s.parts[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPartition, p)
	}
	return part, nil
}

// Merge unions items into the partition by id and returns how many were
// stored. A record replaces any earlier record with the same id, so within
// one call the last duplicate wins. Items without an id are skipped.
// Replacing a record keeps its original discovery position.
func (s *ItemStore) Merge(p model.Partition, items ...model.Item) (int, error) {
	part, err := s.partition(p)
	if err != nil {
		return 0, err
	}

	merged := 0
	for _, it := range items {
		id := it.ID()
		if id == "" {
			continue
		}
		if _, ok := part.seen[id]; !ok {
			part.seq++
			part.seen[id] = part.seq
		}
		part.items[id] = it
		merged++
	}
	return merged, nil
}

// Contains reports whether id is present in the partition.
// Unknown partitions contain nothing.
func (s *ItemStore) Contains(p model.Partition, id string) bool {
	part, ok := s.parts[p]
	if !ok {
		return false
	}
	_, ok = part.items[id]
	return ok
}

// Get returns the record stored under id.
func (s *ItemStore) Get(p model.Partition, id string) (model.Item, bool) {
	part, ok := s.parts[p]
	if !ok {
		return nil, false
	}
	it, ok := part.items[id]
	return it, ok
}

// Subtract removes ids from the partition and returns how many were present.
// A removed id forgets its discovery position; if it is merged again it is
// treated as newly seen.
func (s *ItemStore) Subtract(p model.Partition, ids ...string) (int, error) {
	part, err := s.partition(p)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		if _, ok := part.items[id]; ok {
			delete(part.items, id)
			delete(part.seen, id)
			removed++
		}
	}
	return removed, nil
}

// EvictPrimary removes every primary id from the related partition,
// restoring primary ∩ related = ∅. It returns the number of evicted items.
func (s *ItemStore) EvictPrimary() int {
	primary := s.parts[model.Primary]
	related := s.parts[model.Related]

	evicted := 0
	for id := range related.items {
		if _, ok := primary.items[id]; ok {
			delete(related.items, id)
			delete(related.seen, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of items in the partition.
func (s *ItemStore) Len(p model.Partition) int {
	part, ok := s.parts[p]
	if !ok {
		return 0
	}
	return len(part.items)
}

// IDs returns the partition's ids in discovery order.
func (s *ItemStore) IDs(p model.Partition) []string {
	part, ok := s.parts[p]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(part.items))
	for id := range part.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return part.seen[ids[i]] < part.seen[ids[j]]
	})
	return ids
}

// Items returns the partition's records in discovery order.
func (s *ItemStore) Items(p model.Partition) []model.Item {
	ids := s.IDs(p)
	if ids == nil {
		return nil
	}
	part := s.parts[p]

	items := make([]model.Item, len(ids))
	for i, id := range ids {
		items[i] = part.items[id]
	}
	return items
}

// Retain keeps only the items of the partition for which keep returns true
// and returns the number removed. Removed ids forget their position.
func (s *ItemStore) Retain(p model.Partition, keep func(model.Item) bool) (int, error) {
	part, err := s.partition(p)
	if err != nil {
		return 0, err
	}

	removed := 0
	for id, it := range part.items {
		if !keep(it) {
			delete(part.items, id)
			delete(part.seen, id)
			removed++
		}
	}
	return removed, nil
}
