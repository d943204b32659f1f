package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pleaseai/repograph/internal/llm"
)

const (
	// exclusionVotes is the fixed number of voting rounds.
	exclusionVotes = 3
	// exclusionMajority is how many rounds must agree to drop a file.
	exclusionMajority = 2
)

const exclusionSystemPrompt = `You review a repository file list and name files that are
irrelevant for understanding the codebase: generated output, vendored copies, fixtures,
lockfiles committed as source. Respond with a JSON array of relative paths to exclude.
Respond with [] when every file matters. Never exclude files you are unsure about.`

// voteFileExclusions asks the LLM three times which files to drop and
// excludes a file only when at least two rounds agree. Round failures
// count as empty votes.
func voteFileExclusions(ctx context.Context, client llm.Client, relFiles []string) (map[string]bool, []string) {
	if client == nil || len(relFiles) == 0 {
		return nil, nil
	}
	known := make(map[string]bool, len(relFiles))
	for _, f := range relFiles {
		known[f] = true
	}
	prompt := "Files:\n" + strings.Join(relFiles, "\n")

	var warnings []string
	votes := map[string]int{}
	for round := 0; round < exclusionVotes; round++ {
		var picked []string
		if err := client.CompleteJSON(ctx, prompt, exclusionSystemPrompt, &picked); err != nil {
			warnings = append(warnings, fmt.Sprintf("exclusion vote %d failed: %v", round+1, err))
			continue
		}
		seen := map[string]bool{}
		for _, p := range picked {
			if !known[p] || seen[p] {
				continue
			}
			seen[p] = true
			votes[p]++
		}
	}

	excluded := map[string]bool{}
	for f, n := range votes {
		if n >= exclusionMajority {
			excluded[f] = true
		}
	}
	if len(excluded) > 0 {
		slog.Info("encode.filter.done", "excluded", len(excluded))
	}
	return excluded, warnings
}
