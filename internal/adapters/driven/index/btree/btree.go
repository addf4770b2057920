package btree

import (
	"sort"

	"github.com/custodia-labs/kotadb/internal/core/domain"
)

// Node fan-out for a minimum degree of 3. A node holds at most maxKeys
// keys and, unless it is the root, at least minKeys.
const (
	maxKeys = 5
	minKeys = 2
)

// node is an immutable B+-tree node. Leaves hold path/id pairs; internal
// nodes hold separator keys where keys[i] is the smallest path reachable
// under children[i+1]. Mutating operations copy every node they touch
// and leave the originals untouched, so a published root is a stable
// snapshot for concurrent readers.
type node struct {
	leaf     bool
	keys     []domain.ValidatedPath
	ids      []domain.ValidatedDocumentID
	children []*node
}

func (n *node) clone() *node {
	c := &node{leaf: n.leaf}
	c.keys = append([]domain.ValidatedPath(nil), n.keys...)
	if n.leaf {
		c.ids = append([]domain.ValidatedDocumentID(nil), n.ids...)
	} else {
		c.children = append([]*node(nil), n.children...)
	}
	return c
}

// childFor returns the index of the child subtree that may contain key.
func (n *node) childFor(key domain.ValidatedPath) int {
	return sort.Search(len(n.keys), func(i int) bool { return key.Less(n.keys[i]) })
}

// leafPos returns the insertion position of key within a leaf and
// whether the key is already present.
func (n *node) leafPos(key domain.ValidatedPath) (int, bool) {
	i := sort.Search(len(n.keys), func(j int) bool { return !n.keys[j].Less(key) })
	return i, i < len(n.keys) && n.keys[i] == key
}

// tree is an immutable B+-tree value. Updates return a fresh tree
// sharing unchanged nodes with the original.
type tree struct {
	root *node
	size int
}

func newTree() *tree {
	return &tree{root: &node{leaf: true}}
}

func (t *tree) lookup(key domain.ValidatedPath) (domain.ValidatedDocumentID, bool) {
	n := t.root
	for !n.leaf {
		n = n.children[n.childFor(key)]
	}
	i, ok := n.leafPos(key)
	if !ok {
		return domain.ValidatedDocumentID{}, false
	}
	return n.ids[i], true
}

func (t *tree) insert(key domain.ValidatedPath, id domain.ValidatedDocumentID) (*tree, error) {
	n, sep, sib, err := insertNode(t.root, key, id)
	if err != nil {
		return nil, err
	}
	if sib != nil {
		n = &node{
			keys:     []domain.ValidatedPath{sep},
			children: []*node{n, sib},
		}
	}
	return &tree{root: n, size: t.size + 1}, nil
}

// insertNode adds key to a copy of the subtree rooted at n. When the
// copied node overflows it splits, returning the promoted separator and
// the new right sibling.
func insertNode(n *node, key domain.ValidatedPath, id domain.ValidatedDocumentID) (*node, domain.ValidatedPath, *node, error) {
	var zero domain.ValidatedPath

	if n.leaf {
		i, found := n.leafPos(key)
		if found {
			return nil, zero, nil, domain.ErrDuplicateKey
		}
		c := n.clone()
		c.keys = append(c.keys, zero)
		copy(c.keys[i+1:], c.keys[i:])
		c.keys[i] = key
		c.ids = append(c.ids, domain.ValidatedDocumentID{})
		copy(c.ids[i+1:], c.ids[i:])
		c.ids[i] = id
		if len(c.keys) <= maxKeys {
			return c, zero, nil, nil
		}
		mid := len(c.keys) / 2
		right := &node{
			leaf: true,
			keys: append([]domain.ValidatedPath(nil), c.keys[mid:]...),
			ids:  append([]domain.ValidatedDocumentID(nil), c.ids[mid:]...),
		}
		c.keys = c.keys[:mid]
		c.ids = c.ids[:mid]
		return c, right.keys[0], right, nil
	}

	i := n.childFor(key)
	child, sep, sib, err := insertNode(n.children[i], key, id)
	if err != nil {
		return nil, zero, nil, err
	}
	c := n.clone()
	c.children[i] = child
	if sib != nil {
		c.keys = append(c.keys, zero)
		copy(c.keys[i+1:], c.keys[i:])
		c.keys[i] = sep
		c.children = append(c.children, nil)
		copy(c.children[i+2:], c.children[i+1:])
		c.children[i+1] = sib
	}
	if len(c.keys) <= maxKeys {
		return c, zero, nil, nil
	}
	mid := len(c.keys) / 2
	promoted := c.keys[mid]
	right := &node{
		keys:     append([]domain.ValidatedPath(nil), c.keys[mid+1:]...),
		children: append([]*node(nil), c.children[mid+1:]...),
	}
	c.keys = c.keys[:mid]
	c.children = c.children[:mid+1]
	return c, promoted, right, nil
}

func (t *tree) delete(key domain.ValidatedPath) (*tree, bool) {
	n, found := deleteNode(t.root, key)
	if !found {
		return t, false
	}
	for !n.leaf && len(n.keys) == 0 {
		n = n.children[0]
	}
	return &tree{root: n, size: t.size - 1}, true
}

// deleteNode removes key from a copy of the subtree rooted at n. When
// the key is absent the original node is returned unchanged.
func deleteNode(n *node, key domain.ValidatedPath) (*node, bool) {
	if n.leaf {
		i, found := n.leafPos(key)
		if !found {
			return n, false
		}
		c := n.clone()
		c.keys = append(c.keys[:i], c.keys[i+1:]...)
		c.ids = append(c.ids[:i], c.ids[i+1:]...)
		return c, true
	}

	i := n.childFor(key)
	child, found := deleteNode(n.children[i], key)
	if !found {
		return n, false
	}
	c := n.clone()
	c.children[i] = child
	if len(child.keys) < minKeys {
		c.rebalance(i)
	}
	return c, true
}

// rebalance fixes an underfull child at index i by borrowing a key from
// an adjacent sibling when one can spare it, or merging with a sibling
// otherwise. The receiver and c.children[i] are already private copies;
// siblings are copied before being touched.
func (c *node) rebalance(i int) {
	child := c.children[i]

	if i > 0 && len(c.children[i-1].keys) > minKeys {
		left := c.children[i-1].clone()
		last := len(left.keys) - 1
		if child.leaf {
			child.keys = append([]domain.ValidatedPath{left.keys[last]}, child.keys...)
			child.ids = append([]domain.ValidatedDocumentID{left.ids[last]}, child.ids...)
			left.ids = left.ids[:last]
			c.keys[i-1] = child.keys[0]
		} else {
			child.keys = append([]domain.ValidatedPath{c.keys[i-1]}, child.keys...)
			child.children = append([]*node{left.children[len(left.children)-1]}, child.children...)
			left.children = left.children[:len(left.children)-1]
			c.keys[i-1] = left.keys[last]
		}
		left.keys = left.keys[:last]
		c.children[i-1] = left
		return
	}

	if i < len(c.children)-1 && len(c.children[i+1].keys) > minKeys {
		right := c.children[i+1].clone()
		if child.leaf {
			child.keys = append(child.keys, right.keys[0])
			child.ids = append(child.ids, right.ids[0])
			right.ids = right.ids[1:]
			right.keys = right.keys[1:]
			c.keys[i] = right.keys[0]
		} else {
			child.keys = append(child.keys, c.keys[i])
			child.children = append(child.children, right.children[0])
			right.children = right.children[1:]
			c.keys[i] = right.keys[0]
			right.keys = right.keys[1:]
		}
		c.children[i+1] = right
		return
	}

	// Merge with a sibling, folding the separator into internal nodes.
	if i > 0 {
		m := merge(c.children[i-1], c.keys[i-1], child)
		c.keys = append(c.keys[:i-1], c.keys[i:]...)
		c.children = append(c.children[:i-1], c.children[i:]...)
		c.children[i-1] = m
		return
	}

	m := merge(child, c.keys[i], c.children[i+1])
	c.keys = append(c.keys[:i], c.keys[i+1:]...)
	c.children = append(c.children[:i+1], c.children[i+2:]...)
	c.children[i] = m
}

// merge joins two adjacent siblings into one node. Leaves concatenate
// their pairs; internal nodes fold the parent separator back in between.
func merge(left *node, sep domain.ValidatedPath, right *node) *node {
	m := &node{leaf: left.leaf}
	if left.leaf {
		m.keys = append(append([]domain.ValidatedPath(nil), left.keys...), right.keys...)
		m.ids = append(append([]domain.ValidatedDocumentID(nil), left.ids...), right.ids...)
		return m
	}
	m.keys = append(append(append([]domain.ValidatedPath(nil), left.keys...), sep), right.keys...)
	m.children = append(append([]*node(nil), left.children...), right.children...)
	return m
}

// ascend calls fn for each pair whose path compares >= start, in
// ascending path order, until fn returns false. start is a raw string
// so callers can seek to prefixes that are not themselves valid paths.
func (t *tree) ascend(start string, fn func(domain.ValidatedPath, domain.ValidatedDocumentID) bool) {
	ascendNode(t.root, start, fn)
}

func ascendNode(n *node, start string, fn func(domain.ValidatedPath, domain.ValidatedDocumentID) bool) bool {
	if n.leaf {
		i := sort.Search(len(n.keys), func(j int) bool { return n.keys[j].String() >= start })
		for ; i < len(n.keys); i++ {
			if !fn(n.keys[i], n.ids[i]) {
				return false
			}
		}
		return true
	}
	i := sort.Search(len(n.keys), func(j int) bool { return start < n.keys[j].String() })
	for ; i < len(n.children); i++ {
		if !ascendNode(n.children[i], start, fn) {
			return false
		}
	}
	return true
}
