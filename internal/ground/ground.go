// Package ground anchors high-level nodes to the directories their
// descendant files live in, via lowest-common-ancestor analysis over a
// path trie.
package ground

import (
	"path"
	"sort"

	"github.com/pleaseai/repograph/internal/rpg"
)

type trieNode struct {
	children map[string]*trieNode
	terminal bool
}

func newTrieNode() *trieNode {
	return &trieNode{children: map[string]*trieNode{}}
}

func (t *trieNode) insert(segments []string) {
	n := t
	for _, s := range segments {
		child, ok := n.children[s]
		if !ok {
			child = newTrieNode()
			n.children[s] = child
		}
		n = child
	}
	n.terminal = true
}

// ComputeLCA reduces a set of directory paths to their consolidated
// lowest common ancestors. The trie is descended along its single-child
// chain to the first branching or terminal node; a terminal stop yields
// that one path, a branching stop yields one consolidated path per
// branch. Results are sorted; no result is a prefix of another.
func ComputeLCA(dirs []string) []string {
	root := newTrieNode()
	seen := map[string]bool{}
	for _, d := range dirs {
		d = path.Clean(d)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		if d == "." {
			root.terminal = true
			continue
		}
		root.insert(splitPath(d))
	}
	if len(seen) == 0 {
		return nil
	}

	node, prefix := descendChain(root, nil)
	if node.terminal || len(node.children) == 0 {
		// A terminal on the chain consolidates everything below it.
		return []string{joinPath(prefix)}
	}

	var out []string
	for seg, child := range node.children {
		_, cPrefix := descendChain(child, append(append([]string(nil), prefix...), seg))
		out = append(out, joinPath(cPrefix))
	}
	sort.Strings(out)
	return out
}

// descendChain follows single-child non-terminal nodes, accumulating
// segments.
func descendChain(n *trieNode, prefix []string) (*trieNode, []string) {
	for !n.terminal && len(n.children) == 1 {
		for seg, child := range n.children {
			prefix = append(prefix, seg)
			n = child
		}
	}
	return n, prefix
}

func splitPath(p string) []string {
	var segs []string
	for p != "" && p != "." {
		dir, base := path.Split(p)
		segs = append([]string{base}, segs...)
		p = path.Clean(dir)
		if p == "/" {
			break
		}
	}
	return segs
}

func joinPath(segments []string) string {
	if len(segments) == 0 {
		return "."
	}
	return path.Join(segments...)
}

// Ground walks every functional root and annotates each high-level node
// with the LCA paths of its descendant files. Multi-LCA nodes are marked
// as modules, with all paths recorded under extra.
func Ground(g *rpg.Graph) error {
	for _, root := range g.GetHighLevelNodes() {
		if g.GetParent(root.ID) != "" {
			continue
		}
		if _, err := groundSubtree(g, root.ID); err != nil {
			return err
		}
	}
	return nil
}

// groundSubtree post-order collects descendant file directories, grounds
// the node, and returns the collected set.
func groundSubtree(g *rpg.Graph, id string) ([]string, error) {
	n, err := g.GetNode(id)
	if err != nil {
		return nil, err
	}
	if n.Kind == rpg.KindLow {
		if n.Metadata.EntityType == rpg.EntityFile && n.Metadata.Path != "" {
			return []string{path.Dir(n.Metadata.Path)}, nil
		}
		return nil, nil
	}

	var dirs []string
	for _, child := range g.GetChildren(id) {
		childDirs, err := groundSubtree(g, child)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, childDirs...)
	}

	lcas := ComputeLCA(dirs)
	if len(lcas) > 0 {
		n.Metadata.Path = lcas[0]
		if len(lcas) > 1 {
			if n.Metadata.Extra == nil {
				n.Metadata.Extra = map[string]any{}
			}
			n.Metadata.Extra["paths"] = lcas
			n.Metadata.EntityType = rpg.EntityModule
		}
		if err := g.UpdateNode(n); err != nil {
			return nil, err
		}
	}
	return dirs, nil
}
