package catalog

type color uint8

const (
	white color = iota // unvisited
	grey               // in progress
	black              // done
)

// findCycle runs a three-colour depth-first traversal over the dependency
// edges. It returns the first cycle found as a path whose first and last
// elements are the same node, or nil when the graph is acyclic.
// Roots are visited in the order given, making the reported cycle stable.
func findCycle(ids []string, deps map[string][]string) []string {
	colors := make(map[string]color, len(ids))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		colors[id] = grey
		stack = append(stack, id)
		for _, dep := range deps[id] {
			switch colors[dep] {
			case grey:
				// Back edge to an ancestor still in progress.
				for i, s := range stack {
					if s == dep {
						cycle := append([]string(nil), stack[i:]...)
						return append(cycle, dep)
					}
				}
			case white:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		colors[id] = black
		return nil
	}

	for _, id := range ids {
		if colors[id] == white {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
