// Package depscan extracts template inclusion references ({{>name}}) from
// final template text, so the Orchestrator can transitively materialize
// every template a built template depends on.
package depscan

import "regexp"

var inclusionPattern = regexp.MustCompile(`\{\{>\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Scan returns the set of logical names referenced via {{>name}}
// inclusion tokens in text, order-independent and deduplicated.
func Scan(text string) map[string]bool {
	names := map[string]bool{}
	for _, m := range inclusionPattern.FindAllStringSubmatch(text, -1) {
		names[m[1]] = true
	}
	return names
}

// ScanOrdered is like Scan but returns names in first-occurrence order,
// useful for deterministic diagnostics output.
func ScanOrdered(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range inclusionPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
