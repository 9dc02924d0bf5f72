package metacluster

// unionFind is a disjoint-set forest over metacluster labels with path
// compression. Union attaches the root of the second set under the root of
// the first.
type unionFind []int

func newUnionFind(n int) unionFind {
	uf := make(unionFind, n)
	for i := range uf {
		uf[i] = i
	}
	return uf
}

func (uf unionFind) find(x int) int {
	root := x
	for uf[root] != root {
		root = uf[root]
	}
	for uf[x] != x {
		next := uf[x]
		uf[x] = root
		x = next
	}
	return root
}

func (uf unionFind) union(a, b int) {
	uf[uf.find(b)] = uf.find(a)
}
