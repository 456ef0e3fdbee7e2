package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"loanforge.org/internal/auth"
	"loanforge.org/internal/loan"
	"loanforge.org/internal/notify"
	"loanforge.org/internal/rbac"
	"loanforge.org/internal/stream"
)

type testEnv struct {
	api      *API
	verifier *auth.Verifier
	revs     *auth.RevocationList
	resolver *auth.StaticResolver
	store    *loan.InMemory
	stream   *stream.Stream
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	verifier, err := auth.NewVerifier([]byte("test-secret"), "loanforge")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	revs := auth.NewRevocationList()
	t.Cleanup(revs.Close)

	resolver := auth.NewStaticResolver()
	resolver.Put(auth.NewPrincipal("marketing-1", []string{rbac.RoleMarketing}, true))
	resolver.Put(auth.NewPrincipal("manager-1", []string{rbac.RoleBranchManager}, true))
	resolver.Put(auth.NewPrincipal("backoffice-1", []string{rbac.RoleBackOffice}, true))
	resolver.Put(auth.NewPrincipal("admin-1", []string{rbac.RoleAdmin}, true))
	resolver.Put(auth.NewPrincipal("inactive-1", []string{rbac.RoleMarketing}, false))

	store := loan.NewInMemory()
	engine := rbac.NewEngine()
	svc, err := loan.NewService(store, engine)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	st := stream.New()

	api := New(Deps{
		Version:       "test",
		Verifier:      verifier,
		Revocations:   revs,
		Resolver:      resolver,
		Loans:         svc,
		RBAC:          engine,
		Stream:        st,
		Notifier:      notify.NewDispatcher(),
		RevocationTTL: 15 * time.Minute,
	})

	return &testEnv{
		api:      api,
		verifier: verifier,
		revs:     revs,
		resolver: resolver,
		store:    store,
		stream:   st,
	}
}

func (e *testEnv) token(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	signed, err := e.verifier.Sign(subject, roles, time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return signed
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(rr, req)
	return rr
}

// seed puts an application directly into the store at the given status.
func (e *testEnv) seed(t *testing.T, id string, status loan.Status) {
	t.Helper()
	now := time.Now().UTC()
	app := loan.Application{
		ID:        id,
		OwnerID:   "owner-1",
		ProductID: "product-1",
		Currency:  "USD",
		Amount:    150_000,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreateApplication(context.Background(), &app); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

type decodedEnvelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Error      *apiError       `json:"error"`
	StatusCode int             `json:"statusCode"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) decodedEnvelope {
	t.Helper()
	var env decodedEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v\n%s", err, rr.Body.String())
	}
	return env
}

func requireStatusCode(t *testing.T, rr *httptest.ResponseRecorder, want int) decodedEnvelope {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d\n%s", rr.Code, want, rr.Body.String())
	}
	return decodeEnvelope(t, rr)
}
