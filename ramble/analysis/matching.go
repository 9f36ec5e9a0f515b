package analysis

import "sort"

// maxMatching is a Hopcroft-Karp maximum bipartite matching over small
// integer vertices. Vertex 0 is the null vertex; real vertices start at 1.
// Left and right copies of the n signatures are 1..n and n+1..2n.
type maxMatching struct {
	// adjacency from left vertices, kept sorted for determinism
	edges map[int][]int
	// match[v] is the partner of v on either side, 0 when free
	match map[int]int
	dist  map[int]int
}

const nullVertex = 0

const infinity = int(^uint(0) >> 1)

func newMaxMatching() *maxMatching {
	return &maxMatching{
		edges: map[int][]int{},
		match: map[int]int{},
	}
}

// addEdge connects a left vertex to a right vertex.
func (m *maxMatching) addEdge(left, right int) {
	m.edges[left] = append(m.edges[left], right)
}

// solve computes a maximum matching and returns the pairs for the left
// side: left vertex -> matched right vertex.
func (m *maxMatching) solve(leftCount int) map[int]int {
	for _, adj := range m.edges {
		sort.Ints(adj)
	}
	for m.bfs(leftCount) {
		for u := 1; u <= leftCount; u++ {
			if m.match[u] == nullVertex {
				m.dfs(u)
			}
		}
	}
	result := map[int]int{}
	for u := 1; u <= leftCount; u++ {
		if v := m.match[u]; v != nullVertex {
			result[u] = v
		}
	}
	return result
}

// bfs layers the graph from the free left vertices; true when at least one
// augmenting path exists.
func (m *maxMatching) bfs(leftCount int) bool {
	m.dist = map[int]int{}
	var queue []int
	for u := 1; u <= leftCount; u++ {
		if m.match[u] == nullVertex {
			m.dist[u] = 0
			queue = append(queue, u)
		} else {
			m.dist[u] = infinity
		}
	}
	m.dist[nullVertex] = infinity

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		if m.dist[u] >= m.dist[nullVertex] {
			continue
		}
		for _, v := range m.edges[u] {
			w := m.match[v] // left partner of the right vertex, or null
			if m.dist[w] == infinity {
				m.dist[w] = m.dist[u] + 1
				if w != nullVertex {
					queue = append(queue, w)
				}
			}
		}
	}
	return m.dist[nullVertex] != infinity
}

// dfs extends an alternating path of layered distances from a left vertex.
func (m *maxMatching) dfs(u int) bool {
	if u == nullVertex {
		return true
	}
	for _, v := range m.edges[u] {
		w := m.match[v]
		if m.dist[w] == m.dist[u]+1 && m.dfs(w) {
			m.match[v] = u
			m.match[u] = v
			return true
		}
	}
	m.dist[u] = infinity
	return false
}
