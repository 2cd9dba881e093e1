package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys are the valid keys per config section.
var knownKeys = map[string]map[string]bool{
	"server": {
		"base_url": true, "timeout": true, "user_agent": true,
	},
	"session": {
		"store": true, "token_path": true, "db_path": true, "watch": true, "refresh_timeout": true,
	},
	"logging": {
		"log_level": true, "log_format": true,
	},
}

// knownKeysList is the sorted, fully qualified ("section.key") form of
// knownKeys for Levenshtein matching. Sorted for deterministic suggestions
// when two candidates have the same edit distance.
var knownKeysList = func() []string {
	var keys []string

	for section, fields := range knownKeys {
		for k := range fields {
			keys = append(keys, section+"."+k)
		}
	}

	sort.Strings(keys)

	return keys
}()

var knownSectionsList = func() []string {
	sections := make([]string, 0, len(knownKeys))
	for s := range knownKeys {
		sections = append(sections, s)
	}

	sort.Strings(sections)

	return sections
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	for _, key := range undecoded {
		errs = append(errs, buildKeyError(key.String()))
	}

	return errors.Join(errs...)
}

// buildKeyError creates a descriptive error for an unknown key, suggesting
// the closest known key or section.
func buildKeyError(keyStr string) error {
	section, _, nested := strings.Cut(keyStr, ".")
	_, knownSection := knownKeys[section]

	var suggestion string

	switch {
	case nested || knownSection:
		suggestion = closestMatch(keyStr, knownKeysList)
	default:
		suggestion = closestMatch(keyStr, knownSectionsList)
	}

	if suggestion != "" {
		return fmt.Errorf("unknown config key %q, did you mean %q?", keyStr, suggestion)
	}

	return fmt.Errorf("unknown config key %q", keyStr)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Use single-row optimization to avoid allocating a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
