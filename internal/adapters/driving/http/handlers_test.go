package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-core/internal/chunker"
	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-core/internal/core/services"
)

// fixture wires real services over mock driven ports behind a test server
type fixture struct {
	embedder  *mocks.MockEmbeddingService
	llm       *mocks.MockLLMService
	index     *mocks.MockVectorIndex
	documents *mocks.MockDocumentStore
	sessions  *mocks.MockSessionStore
	queue     *mocks.MockTaskQueue
	extractor *mocks.MockExtractor
	uploadDir string
	ts        *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	embedder := mocks.NewMockEmbeddingService()
	llm := mocks.NewMockLLMService()
	index := mocks.NewMockVectorIndex()
	documents := mocks.NewMockDocumentStore()
	sessionStore := mocks.NewMockSessionStore()
	queue := mocks.NewMockTaskQueue()
	extractor := mocks.NewMockExtractor()

	gateway := services.NewEmbeddingGateway(embedder, services.EmbeddingGatewayConfig{})
	tok := mocks.NewMockTokenizer()
	retriever := services.NewRetriever(gateway, index, tok)
	guardrails, err := services.NewGuardrails(services.GuardrailsConfig{})
	if err != nil {
		t.Fatalf("guardrails: %v", err)
	}

	sessionService := services.NewSessionService(sessionStore)
	queryService := services.NewQueryService(
		retriever, services.NewCitationEngine(), guardrails, llm, sessionService,
		services.QueryServiceConfig{},
	)
	ch := chunker.New(chunker.Config{TargetSize: 50, Overlap: 5, Tokenizer: tok})
	ingestService := services.NewIngestService(
		mocks.NewMockExtractorRegistry(extractor, ".txt"),
		ch, gateway, index, documents, nil,
	)
	documentService := services.NewDocumentService(documents, index, queue, nil)
	collectionService := services.NewCollectionService(documents, index, nil)

	uploadDir := t.TempDir()
	srv := NewServer(
		Config{Version: "test", UploadDir: uploadDir},
		ingestService, queryService, documentService, collectionService, sessionService,
		gateway, llm, index, nil, nil,
	)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &fixture{
		embedder:  embedder,
		llm:       llm,
		index:     index,
		documents: documents,
		sessions:  sessionStore,
		queue:     queue,
		extractor: extractor,
		uploadDir: uploadDir,
		ts:        ts,
	}
}

// seedChunk indexes a chunk whose vector matches its content, so a query
// with the same words retrieves it
func (f *fixture) seedChunk(t *testing.T, id, docID, content string) {
	t.Helper()
	ctx := context.Background()

	vec, err := f.embedder.EmbedQuery(ctx, content)
	if err != nil {
		t.Fatalf("seed embedding: %v", err)
	}
	chunk := &domain.Chunk{
		ID:         id,
		DocumentID: docID,
		Content:    content,
		DocType:    domain.DocTypeText,
		SourceFile: "/docs/" + docID + ".txt",
		CreatedAt:  time.Now(),
	}
	if err := f.index.Upsert(ctx, chunk, vec); err != nil {
		t.Fatalf("seed chunk: %v", err)
	}
}

func (f *fixture) seedDocument(t *testing.T, id string) *domain.Document {
	t.Helper()
	doc := &domain.Document{
		ID:         id,
		SourceFile: "/docs/" + id + ".txt",
		DocType:    domain.DocTypeText,
		ChunkCount: 1,
		CreatedAt:  time.Now(),
	}
	if err := f.documents.Create(context.Background(), doc); err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return doc
}

func (f *fixture) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(f.ts.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = f.get(t, "/ready")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	var version map[string]string
	decodeBody(t, f.get(t, "/version"), &version)
	if version["version"] != "test" {
		t.Errorf("expected version test, got %q", version["version"])
	}
}

func TestQueryReturnsAnswerWithSources(t *testing.T) {
	f := newFixture(t)

	f.seedChunk(t, "chunk-1", "doc-1", "The refund window is 30 days after purchase.")
	f.llm.SetResponse("Refunds are accepted within 30 days [Source 1].")

	resp := f.postJSON(t, "/api/v1/query", map[string]any{
		"question": "The refund window is 30 days after purchase.",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var answer domain.Answer
	decodeBody(t, resp, &answer)

	if !strings.Contains(answer.Answer, "[Source 1]") {
		t.Errorf("expected cited answer, got %q", answer.Answer)
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(answer.Sources))
	}
	if answer.Sources[0].File != "doc-1.txt" {
		t.Errorf("expected source file doc-1.txt, got %q", answer.Sources[0].File)
	}
	if answer.Guardrail != nil {
		t.Error("expected no guardrail block on a clean answer")
	}
}

func TestQueryEmptyRetrievalReturnsNoInformation(t *testing.T) {
	f := newFixture(t)
	// Index left empty

	resp := f.postJSON(t, "/api/v1/query", map[string]any{
		"question": "anything at all",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var answer domain.Answer
	decodeBody(t, resp, &answer)

	if answer.Answer != domain.NoInformationAnswer {
		t.Errorf("expected no-information answer, got %q", answer.Answer)
	}
	if len(answer.Sources) != 0 {
		t.Errorf("expected no sources, got %d", len(answer.Sources))
	}
}

func TestQueryEmptyQuestionRejected(t *testing.T) {
	f := newFixture(t)

	resp := f.postJSON(t, "/api/v1/query", map[string]any{"question": "  "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestQueryStreamEventOrder(t *testing.T) {
	f := newFixture(t)

	f.seedChunk(t, "chunk-1", "doc-1", "Shipping takes five business days.")
	f.llm.SetResponse("Shipping takes five days [Source 1].")

	resp := f.postJSON(t, "/api/v1/query/stream", map[string]any{
		"question": "Shipping takes five business days.",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("expected NDJSON content type, got %q", ct)
	}

	var events []domain.QueryEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var ev domain.QueryEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad NDJSON line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan stream: %v", err)
	}

	if len(events) < 3 {
		t.Fatalf("expected sources + chunks + done, got %d events", len(events))
	}
	if events[0].Type != domain.EventSources {
		t.Errorf("expected first event sources, got %s", events[0].Type)
	}
	last := events[len(events)-1]
	if last.Type != domain.EventDone {
		t.Errorf("expected last event done, got %s", last.Type)
	}
	if last.Confidence == nil {
		t.Error("expected confidence on done event")
	}

	var answer strings.Builder
	for _, ev := range events[1 : len(events)-1] {
		if ev.Type != domain.EventChunk {
			t.Errorf("expected chunk event in the middle, got %s", ev.Type)
		}
		answer.WriteString(ev.Content)
	}
	if got := strings.TrimSpace(answer.String()); got != "Shipping takes five days [Source 1]." {
		t.Errorf("concatenated chunks = %q", got)
	}
}

func TestSearchReturnsRankedResults(t *testing.T) {
	f := newFixture(t)

	f.seedChunk(t, "chunk-1", "doc-1", "Install the agent before provisioning.")

	resp := f.postJSON(t, "/api/v1/search", map[string]any{
		"question": "Install the agent before provisioning.",
		"top_k":    3,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Results []*domain.RetrievedChunk `json:"results"`
		Count   int                      `json:"count"`
	}
	decodeBody(t, resp, &body)
	if body.Count != 1 || len(body.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", body.Count)
	}
	if body.Results[0].Rank != 1 {
		t.Errorf("expected rank 1, got %d", body.Results[0].Rank)
	}
}

func TestIngestLifecycle(t *testing.T) {
	f := newFixture(t)

	f.extractor.SetSegments([]domain.Segment{{Text: "A short document body."}})

	resp := f.postJSON(t, "/api/v1/ingest", map[string]any{
		"path":        "/docs/manual.txt",
		"collections": []string{"manuals"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var doc domain.Document
	decodeBody(t, resp, &doc)
	if doc.ChunkCount != 1 {
		t.Errorf("expected 1 chunk, got %d", doc.ChunkCount)
	}

	// Duplicate path conflicts
	resp = f.postJSON(t, "/api/v1/ingest", map[string]any{"path": "/docs/manual.txt"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Unsupported extension
	resp = f.postJSON(t, "/api/v1/ingest", map[string]any{"path": "/docs/video.mp4"})
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415 for unsupported type, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestIngestMultipartUpload(t *testing.T) {
	f := newFixture(t)

	f.extractor.SetSegments([]domain.Segment{{Text: "Uploaded document body."}})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write([]byte("uploaded text")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.WriteField("collections", "manuals, research"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, f.ts.URL+"/api/v1/ingest", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := f.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var doc domain.Document
	decodeBody(t, resp, &doc)

	saved := filepath.Join(f.uploadDir, "notes.txt")
	if doc.SourceFile != saved {
		t.Errorf("expected source file %q, got %q", saved, doc.SourceFile)
	}
	data, err := os.ReadFile(saved)
	if err != nil {
		t.Fatalf("upload not written: %v", err)
	}
	if string(data) != "uploaded text" {
		t.Errorf("saved content mismatch: %q", data)
	}
	if len(doc.Collections) != 2 || doc.Collections[0] != "manuals" || doc.Collections[1] != "research" {
		t.Errorf("expected collections [manuals research], got %v", doc.Collections)
	}
}

func TestIngestMultipartMissingFilePart(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("collections", "manuals")
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, f.ts.URL+"/api/v1/ingest", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := f.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without a file part, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestIngestBatchIsolation(t *testing.T) {
	f := newFixture(t)

	f.extractor.SetSegments([]domain.Segment{{Text: "Batch file content."}})

	resp := f.postJSON(t, "/api/v1/ingest/batch", map[string]any{
		"files": []map[string]any{
			{"path": "/docs/a.txt"},
			{"path": "/docs/bad.mp4"},
			{"path": "/docs/b.txt"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
		Results   []struct {
			Path  string `json:"path"`
			Error string `json:"error"`
		} `json:"results"`
	}
	decodeBody(t, resp, &result)

	if result.Succeeded != 2 || result.Failed != 1 {
		t.Errorf("expected 2 succeeded / 1 failed, got %d / %d", result.Succeeded, result.Failed)
	}
	if result.Results[1].Error == "" {
		t.Error("expected error entry for the unsupported file")
	}
}

func TestDocumentEndpoints(t *testing.T) {
	f := newFixture(t)

	doc := f.seedDocument(t, "doc-1")
	f.seedChunk(t, "chunk-1", "doc-1", "content")

	var listing struct {
		Documents []*domain.Document `json:"documents"`
		Count     int                `json:"count"`
	}
	decodeBody(t, f.get(t, "/api/v1/documents"), &listing)
	if listing.Count != 1 {
		t.Fatalf("expected 1 document, got %d", listing.Count)
	}

	var got domain.Document
	decodeBody(t, f.get(t, "/api/v1/documents/doc-1"), &got)
	if got.ID != doc.ID {
		t.Errorf("expected doc-1, got %s", got.ID)
	}

	resp := f.get(t, "/api/v1/documents/missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Reindex queues a task
	resp = f.postJSON(t, "/api/v1/documents/doc-1/reindex", map[string]any{})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var task domain.Task
	decodeBody(t, resp, &task)
	if task.Type != domain.TaskTypeReindexDocument || task.DocumentID() != "doc-1" {
		t.Errorf("unexpected task %+v", task)
	}
	if f.queue.Pending() != 1 {
		t.Errorf("expected 1 queued task, got %d", f.queue.Pending())
	}

	// Delete removes document and chunks
	resp = f.do(t, http.MethodDelete, "/api/v1/documents/doc-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	count, err := f.index.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected chunks removed with document, %d left", count)
	}
}

func TestCollectionEndpoints(t *testing.T) {
	f := newFixture(t)

	f.seedDocument(t, "doc-1")
	f.seedChunk(t, "chunk-1", "doc-1", "content")

	resp := f.postJSON(t, "/api/v1/collections", map[string]any{
		"document_id": "doc-1",
		"collections": []string{"research"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	var listing struct {
		Collections []string `json:"collections"`
	}
	decodeBody(t, f.get(t, "/api/v1/collections"), &listing)
	if len(listing.Collections) != 1 || listing.Collections[0] != "research" {
		t.Errorf("expected [research], got %v", listing.Collections)
	}

	var docs struct {
		Documents []*domain.Document `json:"documents"`
		Count     int                `json:"count"`
	}
	decodeBody(t, f.get(t, "/api/v1/collections/research/documents"), &docs)
	if docs.Count != 1 {
		t.Errorf("expected 1 tagged document, got %d", docs.Count)
	}

	// Removing the tag keeps the document
	resp = f.do(t, http.MethodDelete, "/api/v1/collections/research", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	var after struct {
		Documents []*domain.Document `json:"documents"`
		Count     int                `json:"count"`
	}
	decodeBody(t, f.get(t, "/api/v1/documents"), &after)
	if after.Count != 1 {
		t.Errorf("expected document to survive tag removal, got %d", after.Count)
	}
}

func TestSessionEndpointsAndQueryRecording(t *testing.T) {
	f := newFixture(t)

	var session domain.Session
	decodeBody(t, f.postJSON(t, "/api/v1/sessions", map[string]any{"title": ""}), &session)
	if session.ID == "" {
		t.Fatal("expected session ID")
	}

	f.seedChunk(t, "chunk-1", "doc-1", "Our office opens at nine.")
	f.llm.SetResponse("The office opens at nine [Source 1].")

	resp := f.postJSON(t, "/api/v1/query", map[string]any{
		"question":   "Our office opens at nine.",
		"session_id": session.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	var messages struct {
		Messages []*domain.Message `json:"messages"`
		Count    int               `json:"count"`
	}
	decodeBody(t, f.get(t, fmt.Sprintf("/api/v1/sessions/%s/messages", session.ID)), &messages)
	if messages.Count != 2 {
		t.Fatalf("expected question+answer recorded, got %d messages", messages.Count)
	}
	if messages.Messages[0].Role != domain.RoleUser || messages.Messages[1].Role != domain.RoleAssistant {
		t.Error("expected user message then assistant message")
	}

	// Title derived from the first question
	var got domain.Session
	decodeBody(t, f.get(t, "/api/v1/sessions/"+session.ID), &got)
	if got.Title == "" {
		t.Error("expected derived session title")
	}

	// Rename and delete
	resp = f.do(t, http.MethodPatch, "/api/v1/sessions/"+session.ID, map[string]any{"title": "Office hours"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rename: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = f.do(t, http.MethodDelete, "/api/v1/sessions/"+session.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = f.get(t, "/api/v1/sessions/" + session.ID)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture(t)

	f.seedDocument(t, "doc-1")

	var stats domain.Stats
	decodeBody(t, f.get(t, "/api/v1/stats"), &stats)
	if stats.TotalDocuments != 1 {
		t.Errorf("expected 1 document, got %d", stats.TotalDocuments)
	}
}

func TestModelStatus(t *testing.T) {
	f := newFixture(t)

	f.llm.SetUnhealthy(true)

	var status map[string]struct {
		Model     string `json:"model"`
		Available bool   `json:"available"`
		Error     string `json:"error"`
	}
	decodeBody(t, f.get(t, "/api/v1/models/status"), &status)

	if !status["embedding"].Available {
		t.Error("expected embedding model available")
	}
	if status["llm"].Available {
		t.Error("expected llm unavailable after SetUnhealthy")
	}
	if status["llm"].Error == "" {
		t.Error("expected llm error detail")
	}
}

func TestInvalidJSONRejected(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.ts.URL+"/api/v1/query", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}
