package metadata

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule amends records whose reference matches Pattern. Rules are not
// first-match-wins: every matching rule applies, in the order given, so a
// later rule overrides the keys an earlier one set.
type Rule struct {
	Pattern     *regexp.Regexp
	Assignments []Assignment
}

// Assignment is one key=value pair a rule sets.
type Assignment struct {
	Key   string
	Value string
}

// ParseRule parses "<regex>:<key>=<value>,<key>=<value>,...".
func ParseRule(s string) (*Rule, error) {
	pattern, rest, found := strings.Cut(s, ":")
	if !found || pattern == "" || rest == "" {
		return nil, fmt.Errorf("invalid mapping rule %q: expected <regex>:<key>=<value>,...", s)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid mapping rule %q: bad pattern: %w", s, err)
	}

	rule := &Rule{Pattern: re}
	for _, pair := range strings.Split(rest, ",") {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid mapping rule %q: bad assignment %q", s, pair)
		}
		rule.Assignments = append(rule.Assignments, Assignment{Key: key, Value: value})
	}
	return rule, nil
}

// ParseRules parses a list of rule strings, preserving order.
func ParseRules(specs []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for _, s := range specs {
		rule, err := ParseRule(s)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, nil
}

// ApplyRules amends records in place. For each record, every rule whose
// pattern matches the record's reference applies its assignments in order.
func ApplyRules(rules []Rule, records []Record) error {
	for i := range records {
		for _, rule := range rules {
			if !rule.Pattern.MatchString(records[i].Reference) {
				continue
			}
			for _, a := range rule.Assignments {
				if err := setField(&records[i], a.Key, a.Value); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// setField assigns one of the user-suppliable metadata fields. Fields derived
// from the file itself (checksum, dimensions, resolution) are not assignable.
func setField(r *Record, key, value string) error {
	switch key {
	case "staining_method":
		r.StainingMethod = value
	case "tissue":
		r.Tissue = value
	case "disease":
		r.Disease = value
	default:
		return fmt.Errorf("mapping rule sets unknown or non-assignable field %q", key)
	}
	return nil
}
