package searcher

import (
	"container/heap"

	"github.com/quarrysearch/quarry/index"
)

// Compile time check to ensure resultQueue satisfies the heap interface.
var _ heap.Interface = (*resultQueue)(nil)

type resultItem struct {
	ref   index.DocRef
	score float64
}

// resultQueue is a min-heap over scored documents. Keeping the worst hit on
// top lets top-k selection evict in O(log k).
type resultQueue struct {
	items []resultItem
}

func (rq *resultQueue) Len() int { return len(rq.items) }

func (rq *resultQueue) Less(i, j int) bool {
	return rq.items[i].score < rq.items[j].score
}

func (rq *resultQueue) Swap(i, j int) {
	rq.items[i], rq.items[j] = rq.items[j], rq.items[i]
}

func (rq *resultQueue) Push(x any) {
	item, _ := x.(resultItem)
	rq.items = append(rq.items, item)
}

func (rq *resultQueue) Pop() any {
	old := rq.items
	n := len(old)
	item := old[n-1]
	rq.items = old[:n-1]
	return item
}
