package analysis

import "sort"

// Selection is the index assignment for one relation: the minimum set of
// lexicographic orders covering every search, and which order serves each
// search.
type Selection struct {
	// Width is the stored tuple width, auxiliary columns included.
	Width int
	// Searches in the deterministic order used to build the cover.
	Searches []SearchSignature
	// Orders are total column permutations; Orders[0] is the master index
	// holding the authoritative copy of the relation.
	Orders [][]int

	assignment map[string]int
}

// IndexFor returns which order serves the search.
func (s *Selection) IndexFor(sig SearchSignature) (int, bool) {
	id, ok := s.assignment[sig.Key()]
	return id, ok
}

// solveSelection computes a minimum chain cover of the searches by maximum
// bipartite matching and turns each chain into one lexicographic order.
// When fullKey is non-empty, the order serving that signature is moved to
// position 0.
func solveSelection(width int, searches []SearchSignature, fullKey string) *Selection {
	sel := &Selection{Width: width, assignment: map[string]int{}}

	// Deduplicate and drop unconstrained searches.
	seen := map[string]bool{}
	for _, sig := range searches {
		key := sig.Key()
		if sig.IsEmpty() || seen[key] {
			continue
		}
		seen[key] = true
		sel.Searches = append(sel.Searches, sig)
	}
	sort.Slice(sel.Searches, func(i, j int) bool {
		ci, cj := sel.Searches[i].Cardinality(), sel.Searches[j].Cardinality()
		if ci != cj {
			return ci < cj
		}
		return sel.Searches[i].Key() < sel.Searches[j].Key()
	})

	if len(sel.Searches) == 0 {
		// The relation still needs one index to hold its tuples.
		sel.Orders = [][]int{identityOrder(width)}
		return sel
	}

	n := len(sel.Searches)
	matching := newMaxMatching()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if sel.Searches[i].Precedes(sel.Searches[j]) {
				matching.addEdge(i+1, n+j+1)
			}
		}
	}
	matched := matching.solve(n)

	// A search is a chain head when nothing matches into its right copy.
	isTail := map[int]bool{}
	for _, right := range matched {
		isTail[right-n-1] = true
	}

	for i := 0; i < n; i++ {
		if isTail[i] {
			continue
		}
		chainID := len(sel.Orders)
		order := make([]int, 0, width)
		inOrder := map[int]bool{}
		for at := i; ; {
			sig := sel.Searches[at]
			sel.assignment[sig.Key()] = chainID
			for _, col := range sig.EqualColumns() {
				if !inOrder[col] {
					inOrder[col] = true
					order = append(order, col)
				}
			}
			for _, col := range sig.InequalColumns() {
				if !inOrder[col] {
					inOrder[col] = true
					order = append(order, col)
				}
			}
			right, ok := matched[at+1]
			if !ok {
				break
			}
			at = right - n - 1
		}
		for col := 0; col < width; col++ {
			if !inOrder[col] {
				order = append(order, col)
			}
		}
		sel.Orders = append(sel.Orders, order)
	}

	if fullKey != "" {
		if id, ok := sel.assignment[fullKey]; ok && id != 0 {
			sel.Orders[0], sel.Orders[id] = sel.Orders[id], sel.Orders[0]
			for key, assigned := range sel.assignment {
				switch assigned {
				case 0:
					sel.assignment[key] = id
				case id:
					sel.assignment[key] = 0
				}
			}
		}
	}
	return sel
}

func identityOrder(width int) []int {
	order := make([]int, width)
	for i := range order {
		order[i] = i
	}
	return order
}
