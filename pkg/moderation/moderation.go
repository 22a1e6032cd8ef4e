// Package moderation rejects comment text that matches a banned word list.
package moderation

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"
)

// Rule bans words matching Pattern unless the match is one of Exceptions.
type Rule struct {
	Text       string   `json:"text"`
	Pattern    string   `json:"pattern"`
	Exceptions []string `json:"exceptions"`

	re *regexp.Regexp
}

type Filter struct {
	rules []Rule
}

// New returns a Filter that rejects nothing until rules are loaded.
func New() *Filter {
	return &Filter{}
}

// LoadFromJSON replaces the rules with the ones stored at path.
func (f *Filter) LoadFromJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return err
	}
	return f.SetRules(rules)
}

// SetRules compiles rules and installs them.
func (f *Filter) SetRules(rules []Rule) error {
	compiled := make([]Rule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("failed to compile pattern %q: %w", r.Pattern, err)
		}
		r.re = re
		compiled[i] = r
	}

	f.rules = compiled
	return nil
}

// Len reports how many rules are loaded.
func (f *Filter) Len() int {
	return len(f.rules)
}

// Check reports whether content contains a banned word. Matching is per word,
// case-insensitive, and ignores surrounding punctuation.
func (f *Filter) Check(content string) bool {
	for _, w := range strings.FieldsFunc(strings.ToLower(content), isSeparator) {
		for _, rule := range f.rules {
			match := rule.re.FindString(w)
			if match == "" || isException(rule, match) {
				continue
			}
			return true
		}
	}
	return false
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func isException(rule Rule, match string) bool {
	for _, exc := range rule.Exceptions {
		if exc == match {
			return true
		}
	}
	return false
}
