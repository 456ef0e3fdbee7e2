package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// Smoke test: creates one loan application and walks it through the whole
// workflow against a running instance. Requires a credential with the ADMIN
// role in LOANFORGE_SMOKE_TOKEN.

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	StatusCode int             `json:"statusCode"`
}

type application struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func main() {
	base := os.Getenv("LOANFORGE_API_ADDR")
	if base == "" {
		base = "http://localhost:8080"
	}
	token := os.Getenv("LOANFORGE_SMOKE_TOKEN")
	if token == "" {
		log.Fatal("LOANFORGE_SMOKE_TOKEN is required")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app := call(ctx, client, base, token, http.MethodPost, "/v1/loans", map[string]any{
		"owner_id":   "smoke-owner",
		"product_id": "smoke-product",
		"currency":   "USD",
		"amount":     100_000,
	})
	log.Printf("created %s in %s", app.ID, app.Status)

	for _, step := range []struct {
		action string
		want   string
	}{
		{"REVIEW", "IN_REVIEW"},
		{"RECOMMEND", "WAITING_APPROVAL"},
		{"APPROVE", "APPROVED_WAITING_DISBURSEMENT"},
		{"DISBURSE", "DISBURSED"},
	} {
		app = call(ctx, client, base, token, http.MethodPost,
			"/v1/loans/"+app.ID+"/transitions", map[string]any{"action": step.action})
		if app.Status != step.want {
			log.Fatalf("%s: status %s, want %s", step.action, app.Status, step.want)
		}
		log.Printf("%s -> %s", step.action, app.Status)
	}

	fmt.Println("smoke ok")
}

func call(ctx context.Context, client *http.Client, base, token, method, path string, body any) application {
	raw, err := json.Marshal(body)
	if err != nil {
		log.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, bytes.NewReader(raw))
	if err != nil {
		log.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		log.Fatalf("%s %s: decode: %v", method, path, err)
	}
	if !env.Success {
		log.Fatalf("%s %s: %d %s", method, path, env.StatusCode, env.Message)
	}
	var app application
	if err := json.Unmarshal(env.Data, &app); err != nil {
		log.Fatalf("%s %s: decode data: %v", method, path, err)
	}
	return app
}
