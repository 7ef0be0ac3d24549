// Package sovereignty implements the data-sovereignty enforcer: a
// per-jurisdiction policy gate over (data category, target jurisdiction)
// pairs, with confinement overriding any allow rule.
package sovereignty

import (
	"sync"

	"github.com/zonetrust/compliance-core/pkg/apierrors"
)

// Category is one of the closed set of data categories the sovereignty
// policy reasons about.
type Category string

const (
	PII              Category = "PII"
	Financial        Category = "Financial"
	Tax              Category = "Tax"
	Corporate        Category = "Corporate"
	Compliance       Category = "Compliance"
	KeyMaterial      Category = "KeyMaterial"
	Analytics        Category = "Analytics"
	PublicRegulatory Category = "PublicRegulatory"
)

// wildcardTarget matches any target jurisdiction for a category.
const wildcardTarget = "*"

// Policy is one jurisdiction's sovereignty posture.
type Policy struct {
	AllowedTargets     map[Category]map[string]bool
	ConfinedCategories map[Category]bool
}

// Verdict is the outcome of a sovereignty check.
type Verdict struct {
	Allowed bool
	Reason  string
}

// Enforcer holds per-jurisdiction policies. Any jurisdiction without an
// explicit policy defaults to deny-all.
type Enforcer struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

func NewEnforcer() *Enforcer {
	return &Enforcer{policies: make(map[string]Policy)}
}

// SetPolicy installs (or replaces) the policy for a jurisdiction.
func (e *Enforcer) SetPolicy(jurisdictionID string, p Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies[jurisdictionID] = p
}

// Check evaluates whether data of category may move from home to target.
//   - moving within the same jurisdiction is always allowed.
//   - a confined category is denied regardless of allowed_targets.
//   - otherwise, allowed iff target (or the "*" wildcard) is in
//     allowed_targets[category].
//   - a jurisdiction with no registered policy denies everything.
func (e *Enforcer) Check(home string, category Category, target string) Verdict {
	if home == target {
		return Verdict{Allowed: true}
	}

	e.mu.RLock()
	policy, ok := e.policies[home]
	e.mu.RUnlock()
	if !ok {
		return Verdict{Allowed: false, Reason: "no sovereignty policy registered for jurisdiction " + home}
	}

	if policy.ConfinedCategories[category] {
		return Verdict{Allowed: false, Reason: "category " + string(category) + " is confined to " + home}
	}

	allowed := policy.AllowedTargets[category]
	if allowed[target] || allowed[wildcardTarget] {
		return Verdict{Allowed: true}
	}
	return Verdict{Allowed: false, Reason: "target " + target + " is not an allowed destination for category " + string(category)}
}

// CheckOrForbid is a convenience wrapper returning the standard
// Forbidden API error with the verdict's reason.
func (e *Enforcer) CheckOrForbid(home string, category Category, target string) error {
	v := e.Check(home, category, target)
	if v.Allowed {
		return nil
	}
	return apierrors.Forbidden("%s", v.Reason)
}
