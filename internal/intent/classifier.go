package intent

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Match is the outcome of classifying one utterance.
type Match struct {
	Category Category
	// Rule is the rule that fired; nil when nothing matched.
	Rule *Rule
}

// Classifier evaluates an ordered rule list top to bottom. The first rule
// whose predicate holds wins and later rules are never consulted.
type Classifier struct {
	rules []Rule
}

// New validates rules and returns a classifier that evaluates them in order.
func New(rules []Rule) (*Classifier, error) {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := r.validate(); err != nil {
			return nil, err
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate rule name %q", r.Name)
		}
		seen[r.Name] = true
	}
	c := &Classifier{rules: make([]Rule, len(rules))}
	copy(c.rules, rules)
	return c, nil
}

// Default returns the classifier built from the embedded rule table.
func Default() *Classifier {
	rules, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("intent: embedded rules invalid: %v", err))
	}
	c, err := New(rules)
	if err != nil {
		panic(fmt.Sprintf("intent: embedded rules invalid: %v", err))
	}
	return c
}

// Load reads a rule table from path. An empty path yields the default table.
func Load(path string) (*Classifier, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	return New(rules)
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// ParseRules decodes a YAML rule table, preserving rule order.
func ParseRules(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rule table is empty")
	}
	return f.Rules, nil
}

// Rules returns a copy of the rule list in evaluation order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Match classifies text, which should already be trimmed and lowercased.
func (c *Classifier) Match(text string) Match {
	text = strings.ToLower(strings.TrimSpace(text))
	for i := range c.rules {
		if c.rules[i].Matches(text) {
			r := c.rules[i]
			return Match{Category: r.Category, Rule: &r}
		}
	}
	return Match{Category: ConversationalFallback}
}

// Classify returns only the category of the first matching rule.
func (c *Classifier) Classify(text string) Category {
	return c.Match(text).Category
}
