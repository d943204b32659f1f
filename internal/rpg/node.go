// Package rpg implements the repository planning graph: a node store with
// functional, dependency and data-flow edges, plus stable serialization
// and an optimistic revision scheme.
package rpg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pleaseai/repograph/internal/semantic"
)

// NodeKind separates reorganization nodes from extracted code nodes.
type NodeKind string

const (
	KindHigh NodeKind = "high"
	KindLow  NodeKind = "low"
)

// Entity types carried in node metadata.
const (
	EntityFile     = "file"
	EntityClass    = "class"
	EntityFunction = "function"
	EntityMethod   = "method"
	EntityModule   = "module"
)

// Metadata locates a node in the codebase. High-level nodes that have been
// grounded carry a path and entityType too.
type Metadata struct {
	EntityType    string         `json:"entityType,omitempty"`
	Path          string         `json:"path,omitempty"`
	StartLine     int            `json:"startLine,omitempty"`
	EndLine       int            `json:"endLine,omitempty"`
	QualifiedName string         `json:"qualifiedName,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// Node is a vertex of the graph.
type Node struct {
	ID         string            `json:"id"`
	Kind       NodeKind          `json:"kind"`
	Feature    *semantic.Feature `json:"feature,omitempty"`
	Metadata   Metadata          `json:"metadata"`
	SourceCode string            `json:"sourceCode,omitempty"`
}

// Clone deep-copies the node.
func (n *Node) Clone() *Node {
	c := *n
	c.Feature = n.Feature.Clone()
	if n.Metadata.Extra != nil {
		extra := make(map[string]any, len(n.Metadata.Extra))
		for k, v := range n.Metadata.Extra {
			extra[k] = v
		}
		c.Metadata.Extra = extra
	}
	return &c
}

// Description returns the feature description, or "" when unset.
func (n *Node) Description() string {
	if n.Feature == nil {
		return ""
	}
	return n.Feature.Description
}

const domainPrefix = "domain:"

// FileNodeID builds the ID for a file node.
func FileNodeID(relPath string) string {
	return relPath + ":" + EntityFile
}

// EntityNodeID builds the ID for an extracted entity node. name and
// startLine are optional suffixes; startLine 0 omits both line and, when
// name is empty, the name segment too.
func EntityNodeID(relPath, entityType, name string, startLine int) string {
	id := relPath + ":" + entityType
	if name != "" {
		id += ":" + name
		if startLine > 0 {
			id += ":" + strconv.Itoa(startLine)
		}
	}
	return id
}

// DomainNodeID builds the ID for a high-level node from one to three
// hierarchy segments.
func DomainNodeID(segments ...string) string {
	return domainPrefix + strings.Join(segments, "/")
}

// IsDomainID reports whether id names a high-level reorganization node.
func IsDomainID(id string) bool {
	return strings.HasPrefix(id, domainPrefix)
}

// DomainSegments returns the hierarchy segments of a domain node ID.
func DomainSegments(id string) ([]string, error) {
	if !IsDomainID(id) {
		return nil, fmt.Errorf("not a domain node id: %q", id)
	}
	rest := strings.TrimPrefix(id, domainPrefix)
	if rest == "" {
		return nil, fmt.Errorf("empty domain node id")
	}
	segments := strings.Split(rest, "/")
	if len(segments) > 3 {
		return nil, fmt.Errorf("domain id %q has %d segments, max 3", id, len(segments))
	}
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("domain id %q has an empty segment", id)
		}
	}
	return segments, nil
}
