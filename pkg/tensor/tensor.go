// Package tensor implements the per-jurisdiction compliance tensor: a
// mapping from regulatory domain to compliance cell, with lattice-join
// aggregation and a canonical commitment digest.
package tensor

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/zonetrust/compliance-core/pkg/apierrors"
	"github.com/zonetrust/compliance-core/pkg/canon"
)

// Domain is one of the 20 standard compliance domains.
type Domain string

const (
	DomainAML                 Domain = "AML"
	DomainKYC                 Domain = "KYC"
	DomainSanctions           Domain = "Sanctions"
	DomainTax                 Domain = "Tax"
	DomainSecurities          Domain = "Securities"
	DomainCorporate           Domain = "Corporate"
	DomainBanking             Domain = "Banking"
	DomainPayments            Domain = "Payments"
	DomainLicensing           Domain = "Licensing"
	DomainDataPrivacy         Domain = "DataPrivacy"
	DomainConsumerProtection  Domain = "ConsumerProtection"
	DomainEnvironmental       Domain = "Environmental"
	DomainLabor               Domain = "Labor"
	DomainCompetition         Domain = "Competition"
	DomainIP                  Domain = "IP"
	DomainCyber               Domain = "Cyber"
	DomainExportControl       Domain = "ExportControl"
	DomainInsolvency          Domain = "Insolvency"
	DomainRealEstate          Domain = "RealEstate"
	DomainOther               Domain = "Other"
)

// AllDomains lists all 20 standard domains, in the fixed order used to
// validate jurisdiction profiles.
var AllDomains = []Domain{
	DomainAML, DomainKYC, DomainSanctions, DomainTax, DomainSecurities,
	DomainCorporate, DomainBanking, DomainPayments, DomainLicensing,
	DomainDataPrivacy, DomainConsumerProtection, DomainEnvironmental,
	DomainLabor, DomainCompetition, DomainIP, DomainCyber,
	DomainExportControl, DomainInsolvency, DomainRealEstate, DomainOther,
}

// State is a cell's compliance state.
type State string

const (
	Compliant          State = "Compliant"
	NonCompliant       State = "NonCompliant"
	Pending            State = "Pending"
	PartiallyCompliant State = "PartiallyCompliant"
	Exempt             State = "Exempt"
	NotApplicable      State = "NotApplicable"
)

var validStates = map[State]bool{
	Compliant: true, NonCompliant: true, Pending: true,
	PartiallyCompliant: true, Exempt: true, NotApplicable: true,
}

// passingStates count as passing for hard-block purposes: they never
// contribute to blocking_domains or drag the lattice join down.
var passingStates = map[State]bool{
	Compliant: true, Exempt: true, NotApplicable: true,
}

// Cell is one domain's compliance state and supporting evidence.
type Cell struct {
	State               State
	AttestationDigests  []string
	IssuedAt            *time.Time
}

// Jurisdiction declares which domains apply to it.
type Jurisdiction struct {
	ID                string
	ApplicableDomains map[Domain]bool
}

// Tensor is a jurisdiction-scoped compliance matrix.
type Tensor struct {
	mu           sync.Mutex
	jurisdiction Jurisdiction
	cells        map[Domain]Cell
	logger       *log.Logger
}

// New constructs a tensor for j. Cells for non-applicable domains are
// initialized NotApplicable and frozen; applicable domains start Pending.
func New(j Jurisdiction, logger *log.Logger) *Tensor {
	if logger == nil {
		logger = log.New(log.Writer(), "[ComplianceTensor] ", log.LstdFlags)
	}
	cells := make(map[Domain]Cell, len(AllDomains))
	for _, d := range AllDomains {
		if j.ApplicableDomains[d] {
			cells[d] = Cell{State: Pending}
		} else {
			cells[d] = Cell{State: NotApplicable}
		}
	}
	return &Tensor{jurisdiction: j, cells: cells, logger: logger}
}

func (t *Tensor) frozen(d Domain) bool {
	return !t.jurisdiction.ApplicableDomains[d]
}

// Get returns the current cell for a domain.
func (t *Tensor) Get(d Domain) (Cell, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.cells[d]
	if !ok {
		return Cell{}, apierrors.Validation("unknown compliance domain %q", d)
	}
	return c, nil
}

// Set replaces the cell for domain d. Non-applicable domains cannot be
// mutated away from NotApplicable.
func (t *Tensor) Set(d Domain, state State, attestationDigests []string, at *time.Time) error {
	if !validStates[state] {
		return apierrors.Validation("unknown compliance state %q", state)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen(d) {
		return apierrors.Validation("domain %q is not applicable to jurisdiction %q", d, t.jurisdiction.ID)
	}

	t.cells[d] = Cell{State: state, AttestationDigests: attestationDigests, IssuedAt: at}
	return nil
}

// FullSlice returns a read-only copy of every cell.
func (t *Tensor) FullSlice() map[Domain]Cell {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[Domain]Cell, len(t.cells))
	for d, c := range t.cells {
		out[d] = c
	}
	return out
}

// AttestationApplication is one parsed entry of an attestation payload
// applied in bulk to the tensor.
type AttestationApplication struct {
	Status    string
	IssuerDID *string
	ExpiresAt *time.Time
}

// ApplyAttestations parses a map of domain key to attestation status.
// Unknown domain keys and unknown status strings are ignored with a
// logged warning; the tensor is otherwise unchanged. Applying to a
// frozen (NotApplicable) cell is silently a no-op.
func (t *Tensor) ApplyAttestations(attestations map[string]AttestationApplication, digestOf func(domainKey, status string) string) {
	for domainKey, app := range attestations {
		d := Domain(domainKey)
		if !isKnownDomain(d) {
			t.logger.Printf("warning: ignoring attestation for unknown domain %q", domainKey)
			continue
		}
		state, ok := statusToState(app.Status)
		if !ok {
			t.logger.Printf("warning: ignoring attestation with unknown status %q for domain %q", app.Status, domainKey)
			continue
		}

		t.mu.Lock()
		if t.frozen(d) {
			t.mu.Unlock()
			continue
		}
		var digests []string
		if digestOf != nil {
			digests = []string{digestOf(domainKey, app.Status)}
		}
		t.cells[d] = Cell{State: state, AttestationDigests: digests, IssuedAt: app.ExpiresAt}
		t.mu.Unlock()
	}
}

func isKnownDomain(d Domain) bool {
	for _, known := range AllDomains {
		if known == d {
			return true
		}
	}
	return false
}

func statusToState(status string) (State, bool) {
	s := State(status)
	if validStates[s] {
		return s, true
	}
	return "", false
}

// BlockingDomains returns the sorted list of applicable domain names
// whose state is not passing.
func (t *Tensor) BlockingDomains() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var blocking []string
	for d, c := range t.cells {
		if t.jurisdiction.ApplicableDomains[d] && !passingStates[c.State] {
			blocking = append(blocking, string(d))
		}
	}
	sort.Strings(blocking)
	return blocking
}

// OverallStatus computes the lattice join over applicable cells: any
// NonCompliant dominates; else any Pending; else any PartiallyCompliant;
// else Compliant. NotApplicable and Exempt cells never affect the join.
func (t *Tensor) OverallStatus() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	sawPending := false
	sawPartial := false
	for d, c := range t.cells {
		if !t.jurisdiction.ApplicableDomains[d] {
			continue
		}
		switch c.State {
		case NonCompliant:
			return NonCompliant
		case Pending:
			sawPending = true
		case PartiallyCompliant:
			sawPartial = true
		}
	}
	if sawPending {
		return Pending
	}
	if sawPartial {
		return PartiallyCompliant
	}
	return Compliant
}

// cellView is the canonicalized shape of a cell for commitment purposes.
type cellView struct {
	State              State    `json:"state"`
	AttestationDigests []string `json:"attestation_digests"`
}

// Commit computes the canonical digest over cells sorted by domain key.
func (t *Tensor) Commit() (canon.Digest, error) {
	t.mu.Lock()
	view := make(map[string]cellView, len(t.cells))
	for d, c := range t.cells {
		digests := c.AttestationDigests
		if digests == nil {
			digests = []string{}
		}
		view[string(d)] = cellView{State: c.State, AttestationDigests: digests}
	}
	t.mu.Unlock()

	cb, err := canon.New(view)
	if err != nil {
		return canon.Digest{}, err
	}
	return canon.Sha256Digest(cb), nil
}
