package encoder

import (
	"context"
	"errors"
	"testing"

	"github.com/pleaseai/repograph/internal/llm"
)

func TestVoteFileExclusionsMajority(t *testing.T) {
	files := []string{"src/app.py", "vendor/lib.py", "src/util.py"}
	client := &llm.ScriptedClient{
		Responses: []string{
			`["vendor/lib.py", "src/util.py"]`,
			`["vendor/lib.py"]`,
			`[]`,
		},
	}
	excluded, warnings := voteFileExclusions(context.Background(), client, files)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	// Only vendor/lib.py reached two votes.
	if !excluded["vendor/lib.py"] || excluded["src/util.py"] || excluded["src/app.py"] {
		t.Fatalf("excluded = %v", excluded)
	}
}

func TestVoteFileExclusionsFailedRoundIsEmptyVote(t *testing.T) {
	files := []string{"src/app.py", "gen/out.py"}
	client := &llm.ScriptedClient{
		Responses: []string{`["gen/out.py"]`, `garbage`, `["gen/out.py"]`},
	}
	excluded, warnings := voteFileExclusions(context.Background(), client, files)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v", warnings)
	}
	if !excluded["gen/out.py"] {
		t.Fatalf("excluded = %v", excluded)
	}
}

func TestVoteFileExclusionsIgnoresUnknownAndDuplicates(t *testing.T) {
	files := []string{"a.py"}
	client := &llm.ScriptedClient{
		// One round repeating the same path must not count twice, and
		// unknown paths never count.
		Responses: []string{`["a.py", "a.py"]`, `["phantom.py"]`, `[]`},
	}
	excluded, _ := voteFileExclusions(context.Background(), client, files)
	if len(excluded) != 0 {
		t.Fatalf("excluded = %v", excluded)
	}
}

func TestVoteFileExclusionsAllRoundsFail(t *testing.T) {
	boom := errors.New("boom")
	client := &llm.ScriptedClient{Errs: []error{boom, boom, boom}}
	excluded, warnings := voteFileExclusions(context.Background(), client, []string{"a.py"})
	if len(excluded) != 0 || len(warnings) != 3 {
		t.Fatalf("excluded = %v warnings = %v", excluded, warnings)
	}
}
