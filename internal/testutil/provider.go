package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// FakeResult is one per-item answer of the fake provider, in wire form.
type FakeResult struct {
	ID                   string `json:"id"`
	TokenID              string `json:"tokenId,omitempty"`
	NodeID               string `json:"nodeId,omitempty"`
	EmissionsRequestUUID string `json:"emissionsRequestUuid,omitempty"`
	Error                any    `json:"error,omitempty"`
}

// ResultFunc decides the answer for one submitted activity id.
type ResultFunc func(id string) FakeResult

// IssueTokens answers every activity with the token "tok-<id>".
func IssueTokens(id string) FakeResult {
	return FakeResult{ID: id, TokenID: "tok-" + id, NodeID: "node-1", EmissionsRequestUUID: "uuid-" + id}
}

// QueueTokens answers every activity with the provider's queue sentinel.
func QueueTokens(id string) FakeResult {
	return FakeResult{ID: id, TokenID: "queued", NodeID: "node-1", EmissionsRequestUUID: "uuid-" + id}
}

// FailTokens answers every activity with an error.
func FailTokens(id string) FakeResult {
	return FakeResult{ID: id, Error: "invalid activity"}
}

// FakeBatch is one batch the fake provider received.
type FakeBatch struct {
	IssuedTo   string
	IssuedFrom string
	Payload    []byte
	IDs        []string
}

// FakeProvider is an in-process tokenization API backed by httptest.
//
// POST /issue decodes the uploaded batch and answers each activity through
// the configured ResultFunc. GET /emissionsrequesttoken/{node}/{uuid} answers
// 404 for unknown requests, "pending" for registered ones and "success" once
// a token has been resolved.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeProvider struct {
	URL string

	mu          sync.Mutex
	results     ResultFunc
	reject      string
	batches     []FakeBatch
	tokens      map[string]string // node/uuid -> token id, "" while pending
	statusCalls int
}

// NewFakeProvider starts a fake provider that issues tokens for every
// activity. The server is closed when the test ends.
func NewFakeProvider(t *testing.T) *FakeProvider {
	t.Helper()

	f := &FakeProvider{results: IssueTokens, tokens: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /issue", f.handleIssue)
	mux.HandleFunc("GET /emissionsrequesttoken/{node}/{uuid}", f.handleStatus)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	f.URL = server.URL
	return f
}

// SetResults replaces the per-item answer.
func (f *FakeProvider) SetResults(fn ResultFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = fn
}

// RejectBatches makes every following submission fail as a whole with msg.
func (f *FakeProvider) RejectBatches(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reject = msg
}

// Pending registers a queued request that has not resolved yet.
func (f *FakeProvider) Pending(nodeID, requestUUID string) {
	f.Resolve(nodeID, requestUUID, "")
}

// Resolve makes the status endpoint report tokenID for the request. An
// all-digit tokenID is sent as a JSON number.
func (f *FakeProvider) Resolve(nodeID, requestUUID, tokenID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[nodeID+"/"+requestUUID] = tokenID
}

// Batches returns the batches received so far.
func (f *FakeProvider) Batches() []FakeBatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeBatch(nil), f.batches...)
}

// StatusCalls returns the number of status lookups received so far.
func (f *FakeProvider) StatusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func (f *FakeProvider) handleIssue(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("input")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()
	payload, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var batch struct {
		Activities []struct {
			ID string `json:"id"`
		} `json:"activities"`
	}
	if err := json.Unmarshal(payload, &batch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "failed", "msg": err.Error()})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	received := FakeBatch{
		IssuedTo:   r.FormValue("issuedTo"),
		IssuedFrom: r.FormValue("issuedFrom"),
		Payload:    payload,
	}
	for _, a := range batch.Activities {
		received.IDs = append(received.IDs, a.ID)
	}
	f.batches = append(f.batches, received)

	if f.reject != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "failed", "msg": f.reject})
		return
	}

	results := make([]FakeResult, 0, len(received.IDs))
	for _, id := range received.IDs {
		results = append(results, f.results(id))
	}
	writeJSON(w, http.StatusCreated, results)
}

func (f *FakeProvider) handleStatus(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statusCalls++
	tokenID, ok := f.tokens[r.PathValue("node")+"/"+r.PathValue("uuid")]
	switch {
	case !ok:
		http.NotFound(w, r)
	case tokenID == "":
		writeJSON(w, http.StatusOK, map[string]string{"status": "pending"})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"token":  map[string]any{"tokenId": tokenValue(tokenID)},
		})
	}
}

// tokenValue encodes an all-digit token id as a JSON number, the way the API
// server stores them.
func tokenValue(tokenID string) any {
	if _, err := strconv.ParseUint(tokenID, 10, 64); err == nil {
		return json.Number(tokenID)
	}
	return tokenID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(fmt.Sprintf("fake provider: encode response: %v", err))
	}
}
