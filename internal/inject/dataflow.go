package inject

import (
	"context"
	"regexp"
	"strings"

	"github.com/pleaseai/repograph/internal/ast"
	"github.com/pleaseai/repograph/internal/rpg"
	"github.com/pleaseai/repograph/internal/symbols"
)

var assignPattern = regexp.MustCompile(`^\s*(?:var\s+|let\s+|const\s+)?([A-Za-z_]\w*)\s*(?::=|=)\s*[^=]`)

// InjectDataFlow adds intra-entity parameter and variable-chain
// self-loops plus inter-file import flows.
func (in *Injector) InjectDataFlow(ctx context.Context, g *rpg.Graph, analyses []FileAnalysis, resolver *symbols.Resolver) ([]string, error) {
	var warnings []string
	for _, fa := range analyses {
		if err := ctx.Err(); err != nil {
			return warnings, err
		}
		lines := strings.Split(string(fa.Source), "\n")

		for _, e := range fa.Result.Entities {
			if e.Type == ast.EntityClass {
				continue
			}
			nodeID := rpg.EntityNodeID(fa.RelPath, string(e.Type), e.Name, e.StartLine)
			if !g.HasNode(nodeID) {
				continue
			}
			body := entityBody(lines, e)
			if body == "" {
				continue
			}

			for _, param := range parseParams(e.Parameters) {
				if referencesName(body, param) {
					in.addFlow(g, rpg.DataFlowEdge{
						From: nodeID, To: nodeID, DataID: param, DataType: rpg.FlowParameter,
					})
				}
			}
			for _, v := range chainedVariables(body) {
				in.addFlow(g, rpg.DataFlowEdge{
					From: nodeID, To: nodeID, DataID: v, DataType: rpg.FlowVariableChain,
				})
			}
		}

		// Import flow runs from the defining file into the importer.
		importerID := rpg.FileNodeID(fa.RelPath)
		if !g.HasNode(importerID) {
			continue
		}
		for name, target := range resolver.ImportsOf(fa.RelPath) {
			if target == fa.RelPath {
				continue
			}
			in.addFlow(g, rpg.DataFlowEdge{
				From:     rpg.FileNodeID(target),
				To:       importerID,
				DataID:   name,
				DataType: rpg.FlowImport,
			})
		}
	}
	return warnings, nil
}

func (in *Injector) addFlow(g *rpg.Graph, e rpg.DataFlowEdge) {
	if !g.HasNode(e.From) || !g.HasNode(e.To) {
		return
	}
	_ = g.AddDataFlowEdge(e)
}

// entityBody returns the entity's source below its signature line.
func entityBody(lines []string, e ast.CodeEntity) string {
	if e.StartLine < 1 || e.EndLine > len(lines) || e.StartLine >= e.EndLine {
		return ""
	}
	return strings.Join(lines[e.StartLine:e.EndLine], "\n")
}

// parseParams pulls parameter names from a raw parameter-list string,
// taking the first identifier of each top-level comma-separated part and
// skipping receivers.
func parseParams(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "(")
	raw = strings.TrimSuffix(raw, ")")
	if raw == "" {
		return nil
	}

	var parts []string
	depth := 0
	start := 0
	for i, r := range raw {
		switch r {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, raw[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, raw[start:])

	var names []string
	for _, p := range parts {
		name := leadingIdentifier(strings.TrimLeft(strings.TrimSpace(p), "*&"))
		switch name {
		case "", "self", "this", "cls":
			continue
		}
		names = append(names, name)
	}
	return names
}

func leadingIdentifier(s string) string {
	end := 0
	for end < len(s) {
		c := s[end]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || end > 0 && c >= '0' && c <= '9' {
			end++
			continue
		}
		break
	}
	return s[:end]
}

func referencesName(body, name string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
	return re.MatchString(body)
}

// chainedVariables finds locals that are assigned on one line and
// referenced on a later one.
func chainedVariables(body string) []string {
	lines := strings.Split(body, "\n")
	declared := map[string]int{}
	var order []string
	for i, line := range lines {
		m := assignPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if _, seen := declared[m[1]]; !seen {
			declared[m[1]] = i
			order = append(order, m[1])
		}
	}

	var chained []string
	for _, name := range order {
		at := declared[name]
		rest := strings.Join(lines[at+1:], "\n")
		if referencesName(rest, name) {
			chained = append(chained, name)
		}
	}
	return chained
}
