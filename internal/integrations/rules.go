package integrations

import (
	"fmt"
	"regexp"

	"github.com/omatztw/timetracker/internal/storage"
)

// Rule source field selectors.
const (
	SourceWindowTitle = "window_title"
	SourceProcessName = "process_name"
	SourceDomain      = "domain"
)

// CompiledRule is one ready-to-run extraction rule.
type CompiledRule struct {
	re     *regexp.Regexp
	source string
}

// CompileRules compiles the configured rules, keeping the valid subset in
// configuration order. Rules that fail to compile, or whose pattern has no
// capture group, are returned as warnings rather than failing the whole set.
func CompileRules(rules []ExtractionRule) ([]CompiledRule, []error) {
	var compiled []CompiledRule
	var warnings []error
	for _, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("rule %q: %w", rule.Pattern, err))
			continue
		}
		if re.NumSubexp() < 1 {
			warnings = append(warnings, fmt.Errorf("rule %q: pattern has no capture group", rule.Pattern))
			continue
		}
		compiled = append(compiled, CompiledRule{re: re, source: rule.Source})
	}
	return compiled, warnings
}

// Extract runs the rules in order against the activity and returns the first
// non-empty capture. Extraction short-circuits on the first match.
func Extract(rules []CompiledRule, a storage.Activity) (string, bool) {
	for _, rule := range rules {
		text := sourceText(a, rule.source)
		m := rule.re.FindStringSubmatch(text)
		if m != nil && m[1] != "" {
			return m[1], true
		}
	}
	return "", false
}

// sourceText selects the activity field a rule reads. Unknown selectors fall
// back to the window title.
func sourceText(a storage.Activity, source string) string {
	switch source {
	case SourceProcessName:
		return a.ProcessName
	case SourceDomain:
		return a.Domain
	default:
		return a.WindowTitle
	}
}
