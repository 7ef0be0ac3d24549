// Package tradeflow implements the archetype-parameterized trade-flow
// finite-state machine: a total transition-validation function per
// archetype, and a TOCTOU-safe submission path that validates, digests
// embedded documents, and advances state under a single per-flow lock.
package tradeflow

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zonetrust/compliance-core/pkg/apierrors"
	"github.com/zonetrust/compliance-core/pkg/canon"
)

// FlowType is one of the four trade-flow archetypes.
type FlowType string

const (
	Export          FlowType = "Export"
	Import          FlowType = "Import"
	LetterOfCredit  FlowType = "LetterOfCredit"
	OpenAccount     FlowType = "OpenAccount"
)

// State is a flow's current position in its archetype's state graph.
type State string

const (
	Created        State = "Created"
	InvoiceIssued  State = "InvoiceIssued"
	InvoiceAccepted State = "InvoiceAccepted"
	LcIssued       State = "LcIssued"
	LcPresented    State = "LcPresented"
	LcHonored      State = "LcHonored"
	GoodsShipped   State = "GoodsShipped"
	BolEndorsed    State = "BolEndorsed"
	GoodsReleased  State = "GoodsReleased"
	Settled        State = "Settled"
	Disputed       State = "Disputed"
	Resolved       State = "Resolved"
)

// TransitionKind is a string tag identifying a transition's shape, e.g.
// "trade.invoice.issue.v1".
type TransitionKind string

const (
	KindInvoiceIssue  TransitionKind = "trade.invoice.issue.v1"
	KindInvoiceAccept TransitionKind = "trade.invoice.accept.v1"
	KindBolIssue      TransitionKind = "trade.bol.issue.v1"
	KindBolEndorse    TransitionKind = "trade.bol.endorse.v1"
	KindBolRelease    TransitionKind = "trade.bol.release.v1"
	KindInvoiceSettle TransitionKind = "trade.invoice.settle.v1"
	KindDisputeFile   TransitionKind = "trade.dispute.file.v1"
	KindDisputeResolve TransitionKind = "trade.dispute.resolve.v1"
	KindLcIssue       TransitionKind = "trade.lc.issue.v1"
	KindLcPresent     TransitionKind = "trade.lc.present.v1"
	KindLcHonor       TransitionKind = "trade.lc.honor.v1"
)

// graph[archetype][fromState][kind] = toState. validateTransition is a
// total function over (flowType, currentState, kind): any combination
// absent from this table is InvalidTransition.
var graph = buildGraph()

func buildGraph() map[FlowType]map[State]map[TransitionKind]State {
	disputeBranch := func(g map[State]map[TransitionKind]State, disputableFrom State) {
		addEdge(g, disputableFrom, KindDisputeFile, Disputed)
		addEdge(g, Disputed, KindDisputeResolve, Resolved)
		addEdge(g, Resolved, KindInvoiceSettle, Settled)
	}

	g := map[FlowType]map[State]map[TransitionKind]State{}

	// Export and Import share the same graph shape.
	for _, ft := range []FlowType{Export, Import} {
		flow := map[State]map[TransitionKind]State{}
		addEdge(flow, Created, KindInvoiceIssue, InvoiceIssued)
		addEdge(flow, InvoiceIssued, KindInvoiceAccept, InvoiceAccepted)
		addEdge(flow, InvoiceAccepted, KindBolIssue, GoodsShipped)
		addEdge(flow, GoodsShipped, KindBolEndorse, BolEndorsed)
		addEdge(flow, BolEndorsed, KindBolRelease, GoodsReleased)
		addEdge(flow, GoodsReleased, KindInvoiceSettle, Settled)
		disputeBranch(flow, InvoiceAccepted)
		g[ft] = flow
	}

	// LetterOfCredit inserts LcIssued/LcPresented/LcHonored between
	// acceptance and shipment.
	lc := map[State]map[TransitionKind]State{}
	addEdge(lc, Created, KindInvoiceIssue, InvoiceIssued)
	addEdge(lc, InvoiceIssued, KindInvoiceAccept, InvoiceAccepted)
	addEdge(lc, InvoiceAccepted, KindLcIssue, LcIssued)
	addEdge(lc, LcIssued, KindLcPresent, LcPresented)
	addEdge(lc, LcPresented, KindLcHonor, LcHonored)
	addEdge(lc, LcHonored, KindBolIssue, GoodsShipped)
	addEdge(lc, GoodsShipped, KindBolEndorse, BolEndorsed)
	addEdge(lc, BolEndorsed, KindBolRelease, GoodsReleased)
	addEdge(lc, GoodsReleased, KindInvoiceSettle, Settled)
	disputeBranch(lc, InvoiceAccepted)
	g[LetterOfCredit] = lc

	// OpenAccount compacts the BoL staging steps: shipment settles
	// directly, no separate endorse/release legs.
	oa := map[State]map[TransitionKind]State{}
	addEdge(oa, Created, KindInvoiceIssue, InvoiceIssued)
	addEdge(oa, InvoiceIssued, KindInvoiceAccept, InvoiceAccepted)
	addEdge(oa, InvoiceAccepted, KindBolIssue, GoodsShipped)
	addEdge(oa, GoodsShipped, KindInvoiceSettle, Settled)
	disputeBranch(oa, InvoiceAccepted)
	g[OpenAccount] = oa

	return g
}

func addEdge(flow map[State]map[TransitionKind]State, from State, kind TransitionKind, to State) {
	if flow[from] == nil {
		flow[from] = map[TransitionKind]State{}
	}
	flow[from][kind] = to
}

// InvalidTransitionError reports a transition that fails closed: an
// unknown kind, a kind invalid in the current state, or a kind the
// archetype doesn't have at all.
type InvalidTransitionError struct {
	From   State
	Kind   TransitionKind
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return "invalid transition from " + string(e.From) + " via " + string(e.Kind) + ": " + e.Reason
}

// ValidateTransition is a total function over (flowType, currentState,
// kind): it always returns either a next state or an InvalidTransitionError,
// never panics or leaves the question open.
func ValidateTransition(flowType FlowType, current State, kind TransitionKind) (State, error) {
	archetype, ok := graph[flowType]
	if !ok {
		return "", &InvalidTransitionError{From: current, Kind: kind, Reason: "unknown flow type"}
	}
	fromState, ok := archetype[current]
	if !ok {
		return "", &InvalidTransitionError{From: current, Kind: kind, Reason: "terminal or unknown state"}
	}
	next, ok := fromState[kind]
	if !ok {
		return "", &InvalidTransitionError{From: current, Kind: kind, Reason: "kind not valid in current state"}
	}
	return next, nil
}

// Party identifies one side of a trade flow.
type Party struct {
	PartyID string `json:"party_id"`
}

// Transition is one admitted step of a flow's history.
type Transition struct {
	ID              uuid.UUID         `json:"id"`
	Kind            TransitionKind    `json:"kind"`
	FromState       State             `json:"from_state"`
	ToState         State             `json:"to_state"`
	Payload         map[string]any    `json:"payload"`
	DocumentDigests map[string]string `json:"document_digests"`
	ReceiptDigest   *string           `json:"receipt_digest,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}

// Flow is a single trade flow instance.
type Flow struct {
	mu sync.Mutex

	FlowID      uuid.UUID    `json:"flow_id"`
	FlowType    FlowType     `json:"flow_type"`
	State       State        `json:"state"`
	Seller      Party        `json:"seller"`
	Buyer       Party        `json:"buyer"`
	Transitions []Transition `json:"transitions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Snapshot is a read-only copy of a flow's current state, safe to hand
// to callers without exposing the live lock.
type Snapshot struct {
	FlowID      uuid.UUID
	FlowType    FlowType
	State       State
	Seller      Party
	Buyer       Party
	Transitions []Transition
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (f *Flow) snapshot() Snapshot {
	transitions := make([]Transition, len(f.Transitions))
	copy(transitions, f.Transitions)
	return Snapshot{
		FlowID: f.FlowID, FlowType: f.FlowType, State: f.State,
		Seller: f.Seller, Buyer: f.Buyer, Transitions: transitions,
		CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt,
	}
}

// Manager owns every live trade flow, keyed by id.
type Manager struct {
	mu    sync.RWMutex
	flows map[uuid.UUID]*Flow
}

func NewManager() *Manager {
	return &Manager{flows: make(map[uuid.UUID]*Flow)}
}

// Create starts a new flow in its archetype's initial Created state.
func (m *Manager) Create(flowType FlowType, seller, buyer Party, now time.Time) (Snapshot, error) {
	if _, ok := graph[flowType]; !ok {
		return Snapshot{}, apierrors.Validation("unknown flow type %q", flowType)
	}

	flow := &Flow{
		FlowID:    uuid.New(),
		FlowType:  flowType,
		State:     Created,
		Seller:    seller,
		Buyer:     buyer,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.flows[flow.FlowID] = flow
	m.mu.Unlock()

	return flow.snapshot(), nil
}

// Get returns a snapshot of the flow with the given id.
func (m *Manager) Get(flowID uuid.UUID) (Snapshot, error) {
	m.mu.RLock()
	flow, ok := m.flows[flowID]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, apierrors.NotFound("trade flow %s not found", flowID)
	}

	flow.mu.Lock()
	defer flow.mu.Unlock()
	return flow.snapshot(), nil
}

// SubmitTransition looks up the flow, validates the transition, digests
// any embedded documents, and advances state — all under the flow's
// single write-lock acquisition, per the concurrency model's TOCTOU
// requirement. Document storage in CAS is the caller's responsibility
// and happens outside this lock.
func (m *Manager) SubmitTransition(flowID uuid.UUID, kind TransitionKind, payload map[string]any, documents map[string]any, now time.Time) (Snapshot, error) {
	m.mu.RLock()
	flow, ok := m.flows[flowID]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, apierrors.NotFound("trade flow %s not found", flowID)
	}

	flow.mu.Lock()
	defer flow.mu.Unlock()

	next, err := ValidateTransition(flow.FlowType, flow.State, kind)
	if err != nil {
		return Snapshot{}, apierrors.Validation("%v", err)
	}

	digests := make(map[string]string, len(documents))
	for name, doc := range documents {
		cb, err := canon.New(doc)
		if err != nil {
			return Snapshot{}, apierrors.Validation("document %q failed canonicalization: %v", name, err)
		}
		digests[name] = canon.Sha256Digest(cb).Hex()
	}

	transition := Transition{
		ID:              uuid.New(),
		Kind:            kind,
		FromState:       flow.State,
		ToState:         next,
		Payload:         payload,
		DocumentDigests: digests,
		Timestamp:       now,
	}

	flow.State = next
	flow.UpdatedAt = now
	flow.Transitions = append(flow.Transitions, transition)

	return flow.snapshot(), nil
}
