// Package matcher evaluates crash signature rules against a crash log's main
// error line and call stack.
package matcher

import (
	"strings"

	"github.com/crashscan/backend/internal/models"
)

// Match returns every rule that fires, error rules first, each table in
// declaration order. A rule listed twice is reported twice.
func Match(mainError, callStack string, rules models.RuleSet) []models.SuspectMatch {
	var out []models.SuspectMatch
	for _, rule := range rules.ErrorRules {
		if MatchError(rule, mainError) {
			out = append(out, models.SuspectMatch{Label: rule.Label, Severity: rule.Severity})
		}
	}
	for _, rule := range rules.StackRules {
		if MatchStack(rule, mainError, callStack) {
			out = append(out, models.SuspectMatch{Label: rule.Label, Severity: rule.Severity})
		}
	}
	return out
}

// MatchError reports whether the rule's match string occurs in the main
// error line. The comparison is case-sensitive.
func MatchError(rule models.ErrorRule, mainError string) bool {
	return rule.MatchString != "" && strings.Contains(mainError, rule.MatchString)
}

// MatchStack evaluates a stack rule.
//
// A NOT predicate found in the call stack rejects the rule outright. If the
// rule has any ME-REQ predicate, only a required hit can make it match.
// Otherwise an ME-OPT hit or a stack hit is enough.
func MatchStack(rule models.StackRule, mainError, callStack string) bool {
	var requiredHit, optionalHit, stackHit bool

	for _, p := range rule.Predicates {
		switch p.Kind {
		case models.PredicateNegativeStack:
			if strings.Contains(callStack, p.Text) {
				return false
			}
		case models.PredicateMainErrorRequired:
			if strings.Contains(mainError, p.Text) {
				requiredHit = true
			}
		case models.PredicateMainErrorOptional:
			if strings.Contains(mainError, p.Text) {
				optionalHit = true
			}
		case models.PredicateCountAtLeast:
			if strings.Count(callStack, p.Text) >= p.Count {
				stackHit = true
			}
		case models.PredicatePlainStack:
			if strings.Contains(callStack, p.Text) {
				stackHit = true
			}
		}
	}

	if rule.HasRequired() {
		return requiredHit
	}
	return optionalHit || stackHit
}

// DLLInvolved reports whether the main error blames a DLL other than the
// allocator, which shows up in many unrelated crashes.
func DLLInvolved(mainError string) bool {
	lower := strings.ToLower(mainError)
	return strings.Contains(lower, ".dll") && !strings.Contains(lower, "tbbmalloc")
}
