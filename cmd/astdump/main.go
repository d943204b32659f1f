// astdump prints the tree-sitter parse tree of a source file. It exists
// for grammar-table maintenance: when an entity or import is not picked
// up, dump the tree to see which node kinds the grammar actually emits.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/pleaseai/repograph/internal/lang"
	"github.com/pleaseai/repograph/internal/parser"
)

func printAST(node *tree_sitter.Node, source []byte, indent int) {
	if node == nil {
		return
	}
	prefix := ""
	for i := 0; i < indent; i++ {
		prefix += "  "
	}
	text := parser.NodeText(node, source)
	if len(text) > 60 {
		text = text[:60] + "..."
	}
	fmt.Printf("%s%s [%d-%d] %q\n", prefix, node.Kind(),
		node.StartPosition().Row+1, node.EndPosition().Row+1, text)
	for i := uint(0); i < node.ChildCount(); i++ {
		printAST(node.Child(i), source, indent+1)
	}
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: astdump <file>")
		os.Exit(2)
	}
	file := os.Args[1]

	spec := lang.ForExtension(filepath.Ext(file))
	if spec == nil {
		fmt.Fprintf(os.Stderr, "astdump: unsupported extension %q\n", filepath.Ext(file))
		os.Exit(1)
	}
	source, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, "astdump:", err)
		os.Exit(1)
	}

	tree, err := parser.Parse(spec.Language, source)
	if err != nil {
		fmt.Fprintln(os.Stderr, "astdump:", err)
		os.Exit(1)
	}
	defer tree.Close()

	fmt.Printf("=== %s (%s) ===\n", file, spec.Language)
	printAST(tree.RootNode(), source, 0)
}
