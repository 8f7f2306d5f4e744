package frontier

import "github.com/nao1215/relcrawl/internal/model"

// Source is the part of the item store the frontier is derived from.
type Source interface {
	Items(p model.Partition) []model.Item
	Contains(p model.Partition, id string) bool
}

// Predicate decides whether a related item is worth fetching.
type Predicate interface {
	Keep(it model.Item) bool
}

// Frontier is a FIFO of item keys.
type Frontier struct {
	queue []model.ItemKey
}

// New returns an empty Frontier.
func New() *Frontier {
	return &Frontier{}
}

// Pop removes and returns the head of the queue.
// The boolean is false when the frontier is empty.
func (f *Frontier) Pop() (model.ItemKey, bool) {
	if len(f.queue) == 0 {
		return model.ItemKey{}, false
	}
	key := f.queue[0]
	f.queue = f.queue[1:]
	return key, true
}

// Rebuild recomputes the queue from src: every related item accepted by keep,
// whose id is not primary and not excluded, in discovery order.
// exclude may be nil.
func (f *Frontier) Rebuild(src Source, keep Predicate, exclude func(id string) bool) {
	related := src.Items(model.Related)
	queue := make([]model.ItemKey, 0, len(related))
	for _, it := range related {
		id := it.ID()
		if src.Contains(model.Primary, id) {
			continue
		}
		if exclude != nil && exclude(id) {
			continue
		}
		if !keep.Keep(it) {
			continue
		}
		queue = append(queue, it.Key())
	}
	f.queue = queue
}

// Len returns the number of queued keys.
func (f *Frontier) Len() int {
	return len(f.queue)
}

// Keys returns a copy of the queued keys in FIFO order.
func (f *Frontier) Keys() []model.ItemKey {
	out := make([]model.ItemKey, len(f.queue))
	copy(out, f.queue)
	return out
}
