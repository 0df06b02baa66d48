package models

// PredicateKind identifies how a stack rule token is evaluated.
type PredicateKind string

const (
	PredicateMainErrorRequired PredicateKind = "ME-REQ"
	PredicateMainErrorOptional PredicateKind = "ME-OPT"
	PredicateCountAtLeast      PredicateKind = "COUNT"
	PredicateNegativeStack     PredicateKind = "NOT"
	PredicatePlainStack        PredicateKind = "STACK"
)

// Predicate is one parsed token of a stack rule.
// Count is only meaningful for PredicateCountAtLeast.
type Predicate struct {
	Kind  PredicateKind `json:"kind" yaml:"kind"`
	Text  string        `json:"text" yaml:"text"`
	Count int           `json:"count,omitempty" yaml:"count,omitempty"`
}

// ErrorRule matches when MatchString is a substring of the main error line.
type ErrorRule struct {
	Severity    string `json:"severity" yaml:"severity"`
	Label       string `json:"label" yaml:"label"`
	MatchString string `json:"matchString" yaml:"match_string"`
}

// StackRule matches on a combination of main error and call stack predicates.
type StackRule struct {
	Severity   string      `json:"severity" yaml:"severity"`
	Label      string      `json:"label" yaml:"label"`
	Predicates []Predicate `json:"predicates" yaml:"predicates"`
}

// HasRequired reports whether the rule declares at least one ME-REQ predicate.
func (r StackRule) HasRequired() bool {
	for _, p := range r.Predicates {
		if p.Kind == PredicateMainErrorRequired {
			return true
		}
	}
	return false
}

// RuleSet is the parsed signature table, kept in declaration order.
type RuleSet struct {
	ErrorRules []ErrorRule `json:"errorRules"`
	StackRules []StackRule `json:"stackRules"`
}

// SuspectMatch is one matched signature.
type SuspectMatch struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
}

// RulesInfo summarizes a loaded rule set for the API.
type RulesInfo struct {
	Game            string `json:"game"`
	ErrorRuleCount  int    `json:"errorRuleCount"`
	StackRuleCount  int    `json:"stackRuleCount"`
	AdvisoryCount   int    `json:"advisoryCount"`
	DatabaseVersion string `json:"databaseVersion"`
}
