package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"loanforge.org/internal/audit"
	"loanforge.org/internal/auth"
	"loanforge.org/internal/loan"
	"loanforge.org/internal/obs"
	"loanforge.org/internal/rbac"
	"loanforge.org/internal/stream"
)

type createLoanRequest struct {
	OwnerID   string `json:"owner_id"`
	ProductID string `json:"product_id"`
	Currency  string `json:"currency"`
	Amount    int64  `json:"amount"`
}

type transitionRequest struct {
	Action string `json:"action"`
}

type listLoansResponse struct {
	Items []loan.Application `json:"items"`
	AsOf  time.Time          `json:"as_of"`
}

func (a *API) handleLoansCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createLoan(w, r)
	case http.MethodGet:
		a.listLoans(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleLoanResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/loans/")
	if path == "" {
		writeError(w, http.StatusNotFound, codeNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/history") {
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/history"), "/")
		if id == "" || r.Method != http.MethodGet {
			a.loanSubresourceError(w, r, id, http.MethodGet)
			return
		}
		a.loanHistory(w, r, id)
		return
	}

	if strings.HasSuffix(path, "/transitions") {
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/transitions"), "/")
		if id == "" || r.Method != http.MethodPost {
			a.loanSubresourceError(w, r, id, http.MethodPost)
			return
		}
		a.transitionLoan(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, http.StatusNotFound, codeNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getLoan(w, r, path)
	default:
		methodNotAllowed(w, http.MethodGet)
	}
}

func (a *API) loanSubresourceError(w http.ResponseWriter, r *http.Request, id, allowed string) {
	if id == "" {
		writeError(w, http.StatusNotFound, codeNotFound, "resource not found")
		return
	}
	methodNotAllowed(w, allowed)
}

func (a *API) createLoan(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}

	var req createLoanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	app, err := a.loans.Create(r.Context(), principal, req.OwnerID, req.ProductID, req.Currency, req.Amount)
	if err != nil {
		a.handleLoanError(w, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "loan.create", map[string]any{
		"loan_id":  app.ID,
		"owner_id": app.OwnerID,
		"amount":   strconv.FormatInt(app.Amount, 10),
		"currency": app.Currency,
	})

	w.Header().Set("Location", "/v1/loans/"+app.ID)
	writeData(w, http.StatusCreated, "loan application created", app)
}

func (a *API) getLoan(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}
	app, err := a.loans.Get(r.Context(), principal, id)
	if err != nil {
		a.handleLoanError(w, err)
		return
	}
	writeData(w, http.StatusOK, "loan application", app)
}

func (a *API) loanHistory(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}
	records, err := a.loans.History(r.Context(), principal, id)
	if err != nil {
		a.handleLoanError(w, err)
		return
	}
	writeData(w, http.StatusOK, "loan history", records)
}

// listLoans serves work queues. An explicit queue or status filter wins;
// otherwise the queue is derived from the caller's roles.
func (a *API) listLoans(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}

	statuses, err := a.queueFilter(principal, r)
	if err != nil {
		writeValidationError(w, err.Error(), nil)
		return
	}

	items, err := a.loans.ListByStatus(r.Context(), principal, statuses...)
	if err != nil {
		a.handleLoanError(w, err)
		return
	}
	writeData(w, http.StatusOK, "loan applications", listLoansResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) queueFilter(principal auth.Principal, r *http.Request) ([]loan.Status, error) {
	if queue := strings.TrimSpace(r.URL.Query().Get("queue")); queue != "" {
		statuses := rbac.QueueStatuses(strings.ToUpper(queue))
		if len(statuses) == 0 {
			return nil, errors.New("unknown queue")
		}
		return statuses, nil
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		var statuses []loan.Status
		for _, part := range strings.Split(raw, ",") {
			st := loan.Status(strings.ToUpper(strings.TrimSpace(part)))
			if !st.Valid() {
				return nil, errors.New("unknown status " + string(st))
			}
			statuses = append(statuses, st)
		}
		return statuses, nil
	}
	var statuses []loan.Status
	for _, role := range principal.RoleList() {
		statuses = append(statuses, rbac.QueueStatuses(role)...)
	}
	if len(statuses) == 0 {
		return nil, errors.New("queue or status query parameter is required")
	}
	return statuses, nil
}

func (a *API) transitionLoan(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	action, ok := loan.ParseAction(req.Action)
	if !ok {
		writeValidationError(w, "unknown action", map[string]string{"action": "must be one of REVIEW, RECOMMEND, APPROVE, REJECT, DISBURSE"})
		return
	}

	app, rec, err := a.loans.Transition(r.Context(), principal, id, action)
	if err != nil {
		obs.LoanTransition(string(action), transitionResult(err))
		a.handleLoanError(w, err)
		return
	}
	obs.LoanTransition(string(action), "success")

	_ = audit.LogEvent(r.Context(), "loan.transition."+strings.ToLower(string(action)), map[string]any{
		"loan_id": app.ID,
		"from":    string(rec.FromStatus),
		"to":      string(rec.ToStatus),
	})

	if a.stream != nil {
		a.stream.Publish(stream.TransitionEvent{
			LoanID:    app.ID,
			From:      string(rec.FromStatus),
			To:        string(rec.ToStatus),
			Action:    rec.Action,
			Actor:     rec.ActorID,
			Timestamp: rec.CreatedAt,
		})
	}
	if a.notifier != nil {
		a.notifier.Notify(r.Context(), app.OwnerID,
			"Loan application update",
			"Application "+app.ID+" moved to "+string(app.Status),
			map[string]string{"loan_id": app.ID, "status": string(app.Status)})
	}

	writeData(w, http.StatusOK, "transition applied", app)
}

func transitionResult(err error) string {
	switch {
	case errors.Is(err, loan.ErrIllegalState):
		return "illegal_state"
	case errors.Is(err, auth.ErrUnauthorized):
		return "denied"
	case errors.Is(err, loan.ErrNotFound):
		return "not_found"
	case errors.Is(err, loan.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

// handleLogout revokes the presented credential. The revocation entry lives
// at most until the credential itself expires.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if _, ok := a.requirePrincipal(w, r); !ok {
		return
	}
	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		a.reject(w, r, "no_credential")
		return
	}

	ttl := a.revocationTTL
	if claims, err := a.verifier.Verify(token); err == nil && claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining < ttl {
			ttl = remaining
		}
	}
	a.revocations.Revoke(auth.Fingerprint(token), ttl)

	_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{})
	writeData(w, http.StatusOK, "logged out", nil)
}

type menuCategoryResponse struct {
	Code     string `json:"code"`
	Category string `json:"category"`
	Allowed  bool   `json:"allowed"`
}

// handleMenuCategory serves GET /v1/menus/{code}/category. Unknown codes
// classify as Other and deny; the lookup itself never fails.
func (a *API) handleMenuCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/menus/")
	code, rest, found := strings.Cut(path, "/")
	if !found || rest != "category" || strings.TrimSpace(code) == "" {
		writeError(w, http.StatusNotFound, codeNotFound, "resource not found")
		return
	}
	principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, "menu category", menuCategoryResponse{
		Code:     strings.ToUpper(strings.TrimSpace(code)),
		Category: a.rbac.CategoryOf(code),
		Allowed:  a.rbac.Allowed(principal, code),
	})
}

// StreamLoans handles Server-Sent Events for workflow transitions.
func (a *API) StreamLoans(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}
	if !a.rbac.Allowed(principal, loan.MenuLoanView) {
		writeForbidden(w)
		return
	}
	if a.stream == nil {
		writeError(w, http.StatusServiceUnavailable, codeInternal, "streaming disabled")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternal, "streaming unsupported")
		return
	}

	ch := a.stream.Subscribe(r.Context())

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for event := range ch {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

func (a *API) handleLoanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		writeForbidden(w)
	case errors.Is(err, loan.ErrInvalidInput):
		writeValidationError(w, err.Error(), nil)
	case errors.Is(err, loan.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "loan application not found")
	case errors.Is(err, loan.ErrIllegalState):
		// The stale-status reason is workflow data, not a secret.
		writeError(w, http.StatusConflict, codeIllegalState, err.Error())
	case errors.Is(err, loan.ErrConflict):
		writeError(w, http.StatusConflict, codeConflict, "duplicate loan application")
	default:
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
