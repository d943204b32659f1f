package discover

import (
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-repo exclusion list read by Discover callers.
const IgnoreFileName = ".rpgignore"

// ParseExcludedPaths extracts exclusion globs from ignore-file content.
// Lines starting with "#" or "//" are comments; blank lines are skipped.
// Everything else is taken verbatim as a glob.
func ParseExcludedPaths(content string) []string {
	var globs []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		globs = append(globs, line)
	}
	return globs
}

// LoadIgnoreFile reads repoPath/.rpgignore if present. A missing file
// yields no globs and no error.
func LoadIgnoreFile(repoPath string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(repoPath, IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return ParseExcludedPaths(string(data)), nil
}
