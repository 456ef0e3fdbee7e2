package loan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loanforge.org/internal/auth"
	"loanforge.org/internal/ids"
)

// Action names a workflow transition request.
type Action string

const (
	ActionReview    Action = "REVIEW"
	ActionRecommend Action = "RECOMMEND"
	ActionApprove   Action = "APPROVE"
	ActionReject    Action = "REJECT"
	ActionDisburse  Action = "DISBURSE"
)

// Menu codes gating each action. The RBAC catalog maps these to role sets.
const (
	MenuLoanCreate   = "LOAN_CREATE"
	MenuLoanReview   = "LOAN_REVIEW"
	MenuLoanApprove  = "LOAN_APPROVE"
	MenuLoanReject   = "LOAN_REJECT"
	MenuLoanDisburse = "LOAN_DISBURSE"
	MenuLoanView     = "LOAN_VIEW"
)

// Rule declares the legal sources, target and gating menu code of an action.
type Rule struct {
	From     []Status
	To       Status
	MenuCode string
}

// The transition table is the whole state machine: no rule, no transition,
// so states can never be skipped.
var rules = map[Action]Rule{
	ActionReview:    {From: []Status{StatusSubmitted}, To: StatusInReview, MenuCode: MenuLoanReview},
	ActionRecommend: {From: []Status{StatusInReview}, To: StatusWaitingApproval, MenuCode: MenuLoanReview},
	ActionApprove:   {From: []Status{StatusWaitingApproval}, To: StatusApprovedWaitingDisbursement, MenuCode: MenuLoanApprove},
	ActionReject:    {From: []Status{StatusSubmitted, StatusInReview, StatusWaitingApproval}, To: StatusRejected, MenuCode: MenuLoanReject},
	ActionDisburse:  {From: []Status{StatusApprovedWaitingDisbursement}, To: StatusDisbursed, MenuCode: MenuLoanDisburse},
}

// RuleFor returns the declared rule for an action.
func RuleFor(action Action) (Rule, bool) {
	r, ok := rules[action]
	return r, ok
}

// ParseAction normalizes a client-supplied action name.
func ParseAction(raw string) (Action, bool) {
	a := Action(strings.TrimSpace(strings.ToUpper(raw)))
	_, ok := rules[a]
	return a, ok
}

// Authorizer decides whether a principal may execute the action behind a
// menu code. Implemented by the RBAC decision engine.
type Authorizer interface {
	Allowed(principal auth.Principal, menuCode string) bool
}

// Service drives the loan workflow state machine.
type Service struct {
	store Store
	authz Authorizer
	now   func() time.Time
}

// NewService constructs a workflow service.
func NewService(store Store, authz Authorizer) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidInput)
	}
	if authz == nil {
		return nil, fmt.Errorf("%w: authorizer is required", ErrInvalidInput)
	}
	return &Service{store: store, authz: authz, now: time.Now}, nil
}

// WithClock overrides the time source (tests).
func (s *Service) WithClock(fn func() time.Time) *Service {
	if fn != nil {
		s.now = fn
	}
	return s
}

// Create registers a new application in SUBMITTED.
func (s *Service) Create(ctx context.Context, principal auth.Principal, ownerID, productID, currency string, amount int64) (Application, error) {
	if !s.authz.Allowed(principal, MenuLoanCreate) {
		return Application{}, auth.ErrUnauthorized
	}
	ownerID = strings.TrimSpace(ownerID)
	productID = strings.TrimSpace(productID)
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if ownerID == "" || productID == "" {
		return Application{}, fmt.Errorf("%w: owner_id and product_id are required", ErrInvalidInput)
	}
	if currency == "" || len(currency) > 8 {
		return Application{}, fmt.Errorf("%w: valid currency is required", ErrInvalidInput)
	}
	if amount <= 0 {
		return Application{}, fmt.Errorf("%w: amount must be > 0", ErrInvalidInput)
	}
	now := s.now().UTC()
	app := Application{
		ID:        ids.New(),
		OwnerID:   ownerID,
		ProductID: productID,
		Currency:  currency,
		Amount:    amount,
		Status:    StatusSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateApplication(ctx, &app); err != nil {
		return Application{}, err
	}
	return app, nil
}

// Get loads one application.
func (s *Service) Get(ctx context.Context, principal auth.Principal, id string) (Application, error) {
	if !s.authz.Allowed(principal, MenuLoanView) {
		return Application{}, auth.ErrUnauthorized
	}
	return s.store.GetApplication(ctx, strings.TrimSpace(id))
}

// History returns the append-only transition trace of an application.
func (s *Service) History(ctx context.Context, principal auth.Principal, id string) ([]HistoryRecord, error) {
	if !s.authz.Allowed(principal, MenuLoanView) {
		return nil, auth.ErrUnauthorized
	}
	if _, err := s.store.GetApplication(ctx, strings.TrimSpace(id)); err != nil {
		return nil, err
	}
	return s.store.History(ctx, strings.TrimSpace(id))
}

// ListByStatus lists applications currently in any of the given states.
func (s *Service) ListByStatus(ctx context.Context, principal auth.Principal, statuses ...Status) ([]Application, error) {
	if !s.authz.Allowed(principal, MenuLoanView) {
		return nil, auth.ErrUnauthorized
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %s", ErrInvalidInput, st)
		}
	}
	return s.store.ListByStatus(ctx, statuses...)
}

// Transition executes one workflow action for the actor. The actor needs an
// RBAC permit for the action's menu code and the application must currently
// sit in one of the action's declared source states; a stale or forged
// request fails with ErrIllegalState and appends nothing.
func (s *Service) Transition(ctx context.Context, principal auth.Principal, loanID string, action Action) (Application, HistoryRecord, error) {
	rule, ok := rules[action]
	if !ok {
		return Application{}, HistoryRecord{}, fmt.Errorf("%w: unknown action %s", ErrInvalidInput, action)
	}
	if !s.authz.Allowed(principal, rule.MenuCode) {
		return Application{}, HistoryRecord{}, auth.ErrUnauthorized
	}

	loanID = strings.TrimSpace(loanID)
	app, err := s.store.GetApplication(ctx, loanID)
	if err != nil {
		return Application{}, HistoryRecord{}, err
	}
	if !statusIn(app.Status, rule.From) {
		return Application{}, HistoryRecord{}, fmt.Errorf("%w: %s cannot %s", ErrIllegalState, app.Status, action)
	}

	rec := HistoryRecord{
		ID:         ids.New(),
		LoanID:     loanID,
		ActorID:    principal.ID,
		Action:     string(action),
		FromStatus: app.Status,
		ToStatus:   rule.To,
		CreatedAt:  s.now().UTC(),
	}
	// The store re-checks the source state under its own serialization, so a
	// losing concurrent attempt surfaces here as ErrIllegalState.
	updated, err := s.store.ApplyTransition(ctx, loanID, app.Status, rule.To, rec)
	if err != nil {
		return Application{}, HistoryRecord{}, err
	}
	return updated, rec, nil
}

func statusIn(s Status, set []Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}
