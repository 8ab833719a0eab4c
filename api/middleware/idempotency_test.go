package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dropship-backend/pkg/enums"
	pkgredis "github.com/angelmondragon/dropship-backend/pkg/redis"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", pkgredis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

type countingHandler struct {
	calls  int
	status int
}

func (c *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.calls++
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(c.status)
	_, _ = fmt.Fprintf(w, `{"call":%d}`, c.calls)
}

func idemRequest(actor uuid.UUID, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/seller/orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req.WithContext(WithActor(req.Context(), actor, enums.UserRoleSeller))
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	next := &countingHandler{status: http.StatusCreated}
	handler := Idempotency(store, CriticalIdempotencyTTL, nil)(next)
	actor := uuid.New()

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idemRequest(actor, "k1", `{"a":1}`))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, idemRequest(actor, "k1", `{"a":1}`))

	if next.calls != 1 {
		t.Fatalf("expected handler called once, got %d", next.calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Fatalf("expected replay of %q, got %d %q", first.Body.String(), second.Code, second.Body.String())
	}
	if second.Header().Get(idempotentReplayHeader) != "true" {
		t.Fatal("expected replay marker header")
	}
	for _, ttl := range store.ttls {
		if ttl != CriticalIdempotencyTTL {
			t.Fatalf("expected critical ttl, got %s", ttl)
		}
	}
}

func TestIdempotencyRejectsReuseWithDifferentBody(t *testing.T) {
	handler := Idempotency(newFakeStore(), 0, nil)(&countingHandler{status: http.StatusOK})
	actor := uuid.New()

	handler.ServeHTTP(httptest.NewRecorder(), idemRequest(actor, "k1", `{"a":1}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, idemRequest(actor, "k1", `{"a":2}`))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestIdempotencyScopesKeysPerCaller(t *testing.T) {
	next := &countingHandler{status: http.StatusOK}
	handler := Idempotency(newFakeStore(), 0, nil)(next)

	handler.ServeHTTP(httptest.NewRecorder(), idemRequest(uuid.New(), "shared", `{}`))
	handler.ServeHTTP(httptest.NewRecorder(), idemRequest(uuid.New(), "shared", `{}`))
	if next.calls != 2 {
		t.Fatalf("expected separate callers to both execute, got %d", next.calls)
	}
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	store := newFakeStore()
	next := &countingHandler{status: http.StatusUnprocessableEntity}
	handler := Idempotency(store, 0, nil)(next)
	actor := uuid.New()

	handler.ServeHTTP(httptest.NewRecorder(), idemRequest(actor, "k1", `{}`))
	handler.ServeHTTP(httptest.NewRecorder(), idemRequest(actor, "k1", `{}`))
	if next.calls != 2 {
		t.Fatalf("expected failed attempt to be retried, got %d calls", next.calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("expected nothing stored, got %v", store.data)
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	next := &countingHandler{status: http.StatusOK}
	resp := httptest.NewRecorder()
	Idempotency(newFakeStore(), 0, nil)(next).ServeHTTP(resp, idemRequest(uuid.New(), "", `{}`))
	if resp.Code != http.StatusBadRequest || next.calls != 0 {
		t.Fatalf("expected 400 without calling handler, got %d calls=%d", resp.Code, next.calls)
	}
}
