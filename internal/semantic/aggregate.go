package semantic

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// AggregateFileFeatures rolls child entity features up into one feature for
// the file. With no children the file gets a module-definition placeholder.
// With an LLM the summary is model-written; otherwise it is derived from
// the most frequent leading verb among the children.
func (e *Extractor) AggregateFileFeatures(ctx context.Context, filePath string, children []*Feature) *Feature {
	fileName := strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))
	humanized := Humanize(fileName)

	if len(children) == 0 {
		f := &Feature{
			Description: "define " + humanized + " module",
			Keywords:    []string{strings.ToLower(fileName)},
		}
		ValidateFeature(f)
		return f
	}

	if e.client != nil {
		if f, err := e.aggregateLLM(ctx, filePath, children); err == nil {
			return f
		} else {
			e.warn("llm aggregation failed for %s: %v", filePath, err)
		}
	}
	return aggregateHeuristic(fileName, humanized, children)
}

func (e *Extractor) aggregateLLM(ctx context.Context, filePath string, children []*Feature) (*Feature, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the purpose of file %s from its member features:\n", filePath)
	for _, c := range children {
		fmt.Fprintf(&b, "- %s\n", c.Description)
	}

	var lastErr error
	for attempt := 0; attempt <= e.opts.MaxParseIterations; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var f Feature
		if err := e.client.CompleteJSON(ctx, b.String(), SystemPrompt, &f); err != nil {
			lastErr = err
			continue
		}
		ValidateFeature(&f)
		if f.Description == "" {
			lastErr = fmt.Errorf("empty description")
			continue
		}
		return &f, nil
	}
	return nil, lastErr
}

// aggregateHeuristic summarizes a file from its children deterministically:
// the most frequent leading verb among child descriptions, applied to the
// humanized file name. Frequency ties go to the verb seen first.
func aggregateHeuristic(fileName, humanized string, children []*Feature) *Feature {
	counts := make(map[string]int)
	var order []string
	for _, c := range children {
		fields := strings.Fields(c.Description)
		if len(fields) == 0 {
			continue
		}
		verb := fields[0]
		if counts[verb] == 0 {
			order = append(order, verb)
		}
		counts[verb]++
	}

	verb := "provide"
	best := 0
	for _, v := range order {
		if counts[v] > best {
			verb, best = v, counts[v]
		}
	}

	f := &Feature{Description: verb + " " + humanized + " functionality"}
	if len(children) > 1 {
		for _, c := range children {
			f.SubFeatures = append(f.SubFeatures, c.Description)
		}
	}
	for _, c := range children {
		f.Keywords = append(f.Keywords, c.Keywords...)
	}
	f.Keywords = append(f.Keywords, strings.ToLower(fileName))
	ValidateFeature(f)
	return f
}
