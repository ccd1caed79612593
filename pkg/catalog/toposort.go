package catalog

import (
	"container/heap"
)

// seqHeap is a min-heap of registration sequence numbers.
type seqHeap []int

func (h seqHeap) Len() int           { return len(h) }
func (h seqHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h seqHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *seqHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *seqHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoSort orders ids so that every node comes after its dependencies.
// Ties are broken by registration sequence. deps must be acyclic.
func topoSort(ids []string, seq map[string]int, deps map[string][]string, dependents map[string][]string) []string {
	inDegree := make(map[string]int, len(ids))
	bySeq := make(map[int]string, len(ids))
	ready := &seqHeap{}

	for _, id := range ids {
		inDegree[id] = len(deps[id])
		bySeq[seq[id]] = id
		if inDegree[id] == 0 {
			*ready = append(*ready, seq[id])
		}
	}
	heap.Init(ready)

	order := make([]string, 0, len(ids))
	for ready.Len() > 0 {
		id := bySeq[heap.Pop(ready).(int)]
		order = append(order, id)
		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				heap.Push(ready, seq[dep])
			}
		}
	}
	return order
}
