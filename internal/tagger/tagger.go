// Package tagger classifies titles against a configured set of regular
// expressions, producing an ordered, de-duplicated tag list.
package tagger

import "regexp"

// Rule pairs a compiled pattern with the tag name it produces.
type Rule struct {
	Tag     string
	Pattern *regexp.Regexp
}

// Tagger holds an ordered set of tag rules, evaluated in configuration
// order so the first rule to define a tag wins its position in the output.
type Tagger struct {
	rules []Rule
}

// New builds a Tagger from pre-compiled rules, evaluated in slice order.
func New(rules []Rule) *Tagger {
	return &Tagger{rules: rules}
}

// Compile builds a Tagger from a tag-name -> pattern-strings map, given an
// explicit name ordering. Returns an error naming the first invalid
// pattern encountered.
func Compile(order []string, patterns map[string][]string) (*Tagger, error) {
	var rules []Rule
	for _, name := range order {
		for _, raw := range patterns[name] {
			re, err := regexp.Compile(raw)
			if err != nil {
				return nil, err
			}
			rules = append(rules, Rule{Tag: name, Pattern: re})
		}
	}
	return &Tagger{rules: rules}, nil
}

// Tag returns every distinct tag whose pattern matches title, in rule
// order, each tag appearing at most once even if matched by several
// patterns.
func (t *Tagger) Tag(title string) []string {
	seen := make(map[string]struct{}, len(t.rules))
	var tags []string
	for _, r := range t.rules {
		if _, ok := seen[r.Tag]; ok {
			continue
		}
		if r.Pattern.MatchString(title) {
			seen[r.Tag] = struct{}{}
			tags = append(tags, r.Tag)
		}
	}
	return tags
}
