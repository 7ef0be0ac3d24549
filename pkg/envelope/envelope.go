// Package envelope wires the fixed write-path orchestration pipeline:
// jurisdiction resolution, sovereignty pre-flight, compliance pre-flight,
// domain mutation, VC issuance, attestation storage, and audit.
package envelope

import (
	"context"
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zonetrust/compliance-core/pkg/apierrors"
	"github.com/zonetrust/compliance-core/pkg/auditlog"
	"github.com/zonetrust/compliance-core/pkg/policyengine"
	"github.com/zonetrust/compliance-core/pkg/sovereignty"
	"github.com/zonetrust/compliance-core/pkg/tensor"
	"github.com/zonetrust/compliance-core/pkg/vc"
)

// SovereigntyCheck is one (data_category, target_jurisdiction) pair the
// request implies, to be validated against the sovereignty enforcer.
type SovereigntyCheck struct {
	Category sovereignty.Category
	Target   string
}

// Mutation is the domain-specific step 4 of the pipeline: the actual
// state change the request is asking for.
type Mutation func(ctx context.Context) (any, error)

// Request describes one write-path operation.
type Request struct {
	JurisdictionID     string
	SovereigntyChecks  []SovereigntyCheck
	Tensor             *tensor.Tensor
	Mutate             Mutation
	CredentialSubject  func(mutationResult any) map[string]any
	ResourceID         string
	EventType          string
	ActorDID           string

	// PolicyTrigger, when non-empty, fires the agentic policy engine
	// after a successful mutation. PolicyData builds the trigger's
	// payload from the mutation result.
	PolicyTrigger policyengine.TriggerType
	PolicyData    func(mutationResult any) map[string]any
}

// Response is the fixed envelope returned by every mutating operation.
type Response struct {
	MassResponse  any               `json:"mass_response"`
	Compliance    ComplianceSummary `json:"compliance"`
	Credential    *vc.Credential    `json:"credential"`
	AttestationID uuid.UUID         `json:"attestation_id"`
}

// ComplianceSummary is the step-3 summary attached to the response.
type ComplianceSummary struct {
	OverallStatus   tensor.State `json:"overall_status"`
	BlockingDomains []string     `json:"blocking_domains,omitempty"`
}

// Attestation is the record written in step 6.
type Attestation struct {
	ID           uuid.UUID
	ResourceID   string
	Operation    string
	Jurisdiction string
	Summary      ComplianceSummary
}

// AttestationStore is a minimal store for attestation records, keyed by
// attestation id: a second Put with the same id replaces the first.
// Execute generates a fresh id on every call, so a retried request writes
// a new record rather than overwriting the earlier one.
type AttestationStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]Attestation
}

func NewAttestationStore() *AttestationStore {
	return &AttestationStore{records: make(map[uuid.UUID]Attestation)}
}

func (s *AttestationStore) Put(a Attestation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[a.ID] = a
}

func (s *AttestationStore) Get(id uuid.UUID) (Attestation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.records[id]
	return a, ok
}

// Envelope composes the sovereignty enforcer, the zone signing key, the
// attestation store, and the audit trail into the fixed pipeline.
type Envelope struct {
	Sovereignty          *sovereignty.Enforcer
	ZoneDID              string
	ZoneVerificationMethod string
	ZoneSigningKey       ed25519.PrivateKey
	Attestations         *AttestationStore
	Audit                *auditlog.Trail
	Policy               *policyengine.Engine
}

// Execute runs the full write-path pipeline for req. Read paths never
// call Execute; they bypass steps 3, 5, 6, 7 entirely by construction.
func (e *Envelope) Execute(ctx context.Context, req Request) (Response, error) {
	// Step 2: sovereignty pre-flight.
	for _, check := range req.SovereigntyChecks {
		if err := e.Sovereignty.CheckOrForbid(req.JurisdictionID, check.Category, check.Target); err != nil {
			return Response{}, err
		}
	}

	// Step 3: compliance pre-flight.
	summary := ComplianceSummary{OverallStatus: tensor.Compliant}
	if req.Tensor != nil {
		summary.OverallStatus = req.Tensor.OverallStatus()
		summary.BlockingDomains = req.Tensor.BlockingDomains()
		if len(summary.BlockingDomains) > 0 {
			return Response{}, apierrors.Forbidden("blocked by compliance domains: %v", summary.BlockingDomains)
		}
	}

	// Step 4: domain mutation. Failure here surfaces the domain's own
	// error taxonomy unmodified.
	result, err := req.Mutate(ctx)
	if err != nil {
		return Response{}, err
	}

	attestationID := uuid.New()
	now := time.Now().UTC()

	// Step 4.5: agentic policy engine. Scheduled actions are advisory at
	// this layer; the engine's own audit trail records what triggered
	// and what matched.
	if e.Policy != nil && req.PolicyTrigger != "" {
		var data map[string]any
		if req.PolicyData != nil {
			data = req.PolicyData(result)
		}
		trigger := policyengine.Trigger{TriggerType: req.PolicyTrigger, Data: data}
		e.Policy.ProcessTrigger(trigger, req.ResourceID, req.JurisdictionID, now)
	}

	// Step 5: VC issuance, tolerant failure.
	var credential *vc.Credential
	if req.CredentialSubject != nil && e.ZoneSigningKey != nil {
		body := vc.Credential{
			Context:           []string{"https://www.w3.org/2018/credentials/v1"},
			Type:              []string{"VerifiableCredential"},
			IssuanceDate:      now.Format(time.RFC3339),
			CredentialSubject: req.CredentialSubject(result),
		}
		signed, signErr := vc.Sign(e.ZoneSigningKey, e.ZoneDID, e.ZoneVerificationMethod, body, now)
		if signErr == nil {
			credential = &signed
		} else if e.Audit != nil {
			e.Audit.Append(auditlog.Entry{
				EntryType:  "vc.issuance_failed",
				At:         now,
				ResourceID: req.ResourceID,
				Data:       map[string]any{"error": signErr.Error()},
			})
		}
	}

	// Step 6: attestation storage, idempotent by attestationID.
	if e.Attestations != nil {
		e.Attestations.Put(Attestation{
			ID:           attestationID,
			ResourceID:   req.ResourceID,
			Operation:    req.EventType,
			Jurisdiction: req.JurisdictionID,
			Summary:      summary,
		})
	}

	// Step 7: audit.
	if e.Audit != nil {
		e.Audit.Append(auditlog.Entry{
			EntryType:  req.EventType,
			At:         now,
			ResourceID: req.ResourceID,
			ActorDID:   e.ZoneDID,
			Data: map[string]any{
				"actor":          req.ActorDID,
				"attestation_id": attestationID.String(),
			},
		})
	}

	return Response{
		MassResponse:  result,
		Compliance:    summary,
		Credential:    credential,
		AttestationID: attestationID,
	}, nil
}
