// Package policyengine implements the agentic policy engine: a closed
// condition algebra, deterministic sorted-order evaluation, and
// priority-then-id conflict resolution deduplicated by action.
package policyengine

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zonetrust/compliance-core/pkg/auditlog"
)

// TriggerType is one of the closed set of trigger kinds the engine
// reasons about.
type TriggerType string

const (
	SanctionsListUpdate  TriggerType = "SanctionsListUpdate"
	LicenseStatusChange  TriggerType = "LicenseStatusChange"
	CorridorStateChange  TriggerType = "CorridorStateChange"
	CheckpointDue        TriggerType = "CheckpointDue"
	DisputeFiled         TriggerType = "DisputeFiled"
	TaxYearEnd           TriggerType = "TaxYearEnd"
	EntityOnboarded      TriggerType = "EntityOnboarded"
	KycExpiry            TriggerType = "KycExpiry"
	AmlAlertRaised       TriggerType = "AmlAlertRaised"
	ComplianceBreach     TriggerType = "ComplianceBreach"
	ForkDetected         TriggerType = "ForkDetected"
	WatcherEquivocation  TriggerType = "WatcherEquivocation"
	ReceiptAppended      TriggerType = "ReceiptAppended"
	TradeFlowSettled     TriggerType = "TradeFlowSettled"
	TradeFlowDisputed    TriggerType = "TradeFlowDisputed"
	CredentialIssued     TriggerType = "CredentialIssued"
	CredentialRevoked    TriggerType = "CredentialRevoked"
	PolicyUpdated        TriggerType = "PolicyUpdated"
	AttestationReceived  TriggerType = "AttestationReceived"
	AnchorConfirmed      TriggerType = "AnchorConfirmed"
)

// Trigger is an event presented to the engine for evaluation.
type Trigger struct {
	TriggerType TriggerType
	Data        map[string]any
}

// Condition is the closed algebra of matchable predicates over a
// trigger's data.
type Condition interface {
	Evaluate(data map[string]any) bool
}

// Equals matches when the dotted-path field equals value.
type Equals struct {
	Field string
	Value any
}

func (c Equals) Evaluate(data map[string]any) bool {
	v, ok := lookupPath(data, c.Field)
	if !ok {
		return false
	}
	return compareEqual(v, c.Value)
}

// GreaterThan matches when the dotted-path field is numerically greater
// than threshold.
type GreaterThan struct {
	Field     string
	Threshold float64
}

func (c GreaterThan) Evaluate(data map[string]any) bool {
	v, ok := numericValue(data, c.Field)
	return ok && v > c.Threshold
}

// Threshold matches when the dotted-path field is numerically greater
// than or equal to its threshold.
type Threshold struct {
	Field     string
	Threshold float64
}

func (c Threshold) Evaluate(data map[string]any) bool {
	v, ok := numericValue(data, c.Field)
	return ok && v >= c.Threshold
}

// Contains matches when the dotted-path field is a slice containing
// item, or a string containing item as a substring.
type Contains struct {
	Field string
	Item  any
}

func (c Contains) Evaluate(data map[string]any) bool {
	v, ok := lookupPath(data, c.Field)
	if !ok {
		return false
	}
	switch container := v.(type) {
	case []any:
		for _, elem := range container {
			if compareEqual(elem, c.Item) {
				return true
			}
		}
		return false
	case string:
		itemStr, ok := c.Item.(string)
		return ok && strings.Contains(container, itemStr)
	default:
		return false
	}
}

// And matches when every nested condition matches.
type And struct{ Conditions []Condition }

func (c And) Evaluate(data map[string]any) bool {
	for _, cond := range c.Conditions {
		if !cond.Evaluate(data) {
			return false
		}
	}
	return true
}

// Or matches when any nested condition matches.
type Or struct{ Conditions []Condition }

func (c Or) Evaluate(data map[string]any) bool {
	for _, cond := range c.Conditions {
		if cond.Evaluate(data) {
			return true
		}
	}
	return false
}

func lookupPath(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = data
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func numericValue(data map[string]any, path string) (float64, bool) {
	v, ok := lookupPath(data, path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func compareEqual(a, b any) bool {
	return a == b
}

// Policy is one agentic rule.
type Policy struct {
	PolicyID                string
	TriggerType             TriggerType
	Action                  string
	Priority                int32
	Conditions              []Condition
	JurisdictionScope       map[string]bool // nil/empty means "any jurisdiction"
	Enabled                 bool
	AuthorizationRequirement string
}

func (p Policy) matches(trigger Trigger, jurisdiction string) bool {
	if !p.Enabled {
		return false
	}
	if p.TriggerType != trigger.TriggerType {
		return false
	}
	if len(p.JurisdictionScope) > 0 && !p.JurisdictionScope[jurisdiction] {
		return false
	}
	for _, cond := range p.Conditions {
		if !cond.Evaluate(trigger.Data) {
			return false
		}
	}
	return true
}

// EvalResult is one policy's verdict against a trigger.
type EvalResult struct {
	PolicyID string
	Matched  bool
	Action   string
	Priority int32
}

// ScheduledAction is emitted by ProcessTrigger for each matched,
// conflict-resolved policy.
type ScheduledAction struct {
	AssetID                 string
	Action                  string
	SourcePolicyID           string
	AuthorizationRequirement string
}

// Engine evaluates policies against triggers.
type Engine struct {
	policies []Policy
	audit    *auditlog.Trail
}

func New(audit *auditlog.Trail) *Engine {
	return &Engine{audit: audit}
}

// LoadPolicies replaces the engine's policy set.
func (e *Engine) LoadPolicies(policies []Policy) {
	e.policies = policies
}

// Evaluate iterates policies in sorted policy_id order, computing a
// match result for each and emitting one TriggerReceived entry followed
// by one PolicyEvaluated entry per policy, for deterministic auditing.
func (e *Engine) Evaluate(trigger Trigger, jurisdiction string, at time.Time) []EvalResult {
	sorted := make([]Policy, len(e.policies))
	copy(sorted, e.policies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PolicyID < sorted[j].PolicyID })

	if e.audit != nil {
		e.audit.Append(auditlog.Entry{
			EntryType: "TriggerReceived",
			At:        at,
			Data:      map[string]any{"trigger_type": string(trigger.TriggerType)},
		})
	}

	results := make([]EvalResult, 0, len(sorted))
	for _, p := range sorted {
		matched := p.matches(trigger, jurisdiction)
		result := EvalResult{PolicyID: p.PolicyID, Matched: matched}
		if matched {
			result.Action = p.Action
			result.Priority = p.Priority
		}
		results = append(results, result)

		if e.audit != nil {
			e.audit.Append(auditlog.Entry{
				EntryType: "PolicyEvaluated",
				At:        at,
				Data: map[string]any{
					"policy_id": p.PolicyID,
					"matched":   matched,
				},
			})
		}
	}
	return results
}

// EvaluateAndResolve returns the matched subset sorted by priority
// descending then policy_id ascending, deduplicated by action keeping
// the highest-priority result per distinct action.
func (e *Engine) EvaluateAndResolve(trigger Trigger, jurisdiction string, at time.Time) []EvalResult {
	results := e.Evaluate(trigger, jurisdiction, at)

	var matched []EvalResult
	for _, r := range results {
		if r.Matched {
			matched = append(matched, r)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].PolicyID < matched[j].PolicyID
	})

	seen := make(map[string]bool, len(matched))
	deduped := make([]EvalResult, 0, len(matched))
	for _, r := range matched {
		if seen[r.Action] {
			continue
		}
		seen[r.Action] = true
		deduped = append(deduped, r)
	}
	return deduped
}

// ProcessTrigger composes evaluation and conflict resolution into
// scheduled actions.
func (e *Engine) ProcessTrigger(trigger Trigger, assetID, jurisdiction string, at time.Time) []ScheduledAction {
	resolved := e.EvaluateAndResolve(trigger, jurisdiction, at)

	policyByID := make(map[string]Policy, len(e.policies))
	for _, p := range e.policies {
		policyByID[p.PolicyID] = p
	}

	actions := make([]ScheduledAction, 0, len(resolved))
	for _, r := range resolved {
		p := policyByID[r.PolicyID]
		actions = append(actions, ScheduledAction{
			AssetID:                 assetID,
			Action:                  r.Action,
			SourcePolicyID:           r.PolicyID,
			AuthorizationRequirement: p.AuthorizationRequirement,
		})
	}
	return actions
}
