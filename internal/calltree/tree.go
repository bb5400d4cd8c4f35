package calltree

import "github.com/getsentry/callprof/internal/frame"

type (
	// Namer resolves function addresses to names.
	Namer interface {
		Name(addr uint64) string
	}

	// Node is one call in an explicit call tree.
	Node struct {
		ID               uint32  `json:"id"`
		Address          uint64  `json:"address"`
		Name             string  `json:"name,omitempty"`
		TotalTimeMicros  int64   `json:"total_time_us"`
		SelfTimeMicros   int64   `json:"self_time_us"`
		MemoryDeltaBytes int64   `json:"memory_delta_bytes"`
		Children         []*Node `json:"children,omitempty"`
	}
)

// Build returns the forest of root calls of an analyzed frame. names may be
// nil, in which case nodes are left unnamed.
func Build(f frame.Frame, names Namer) []*Node {
	nodes := make([]*Node, len(f.Events))
	roots := make([]*Node, 0)
	walk(f.Events, func(i, parent int) {
		ev := f.Events[i]
		n := &Node{
			ID:               ev.ID,
			Address:          ev.Address,
			TotalTimeMicros:  ev.TotalTimeMicros,
			SelfTimeMicros:   ev.SelfTimeMicros,
			MemoryDeltaBytes: ev.MemoryDelta(),
		}
		if names != nil {
			n.Name = names.Name(ev.Address)
		}
		nodes[i] = n
		if parent < 0 {
			roots = append(roots, n)
			return
		}
		nodes[parent].Children = append(nodes[parent].Children, n)
	}, nil)
	return roots
}

// Depth returns the number of levels of the tree rooted at n.
func (n *Node) Depth() int {
	type item struct {
		node  *Node
		depth int
	}
	max := 0
	stack := []item{{n, 1}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.depth > max {
			max = it.depth
		}
		for _, c := range it.node.Children {
			stack = append(stack, item{c, it.depth + 1})
		}
	}
	return max
}
