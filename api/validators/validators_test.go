package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
	"github.com/angelmondragon/dropship-backend/pkg/pagination"
)

type payoutRequest struct {
	UserID uuid.UUID       `json:"user_id" validate:"required"`
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Lines  []payoutLine    `json:"lines" validate:"dive"`
}

type payoutLine struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func detailsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, _ := typed.Details().(map[string]string)
	return details
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	var req payoutRequest
	err := DecodeJSONBody(post(`{"user_id":"`+uuid.NewString()+`","amount":"12.50","lines":[{"quantity":1}]}`), &req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected amount %s", req.Amount)
	}
}

func TestDecodeJSONBodyValidatesMoneyAndIDs(t *testing.T) {
	var req payoutRequest
	details := detailsOf(t, DecodeJSONBody(post(`{"user_id":"00000000-0000-0000-0000-000000000000","amount":"-1"}`), &req))
	if details["user_id"] != "is required" {
		t.Fatalf("expected nil uuid rejected, got %v", details)
	}
	if details["amount"] != "must be greater than 0" {
		t.Fatalf("expected negative amount rejected, got %v", details)
	}
}

func TestDecodeJSONBodyReportsNestedPaths(t *testing.T) {
	var req payoutRequest
	details := detailsOf(t, DecodeJSONBody(post(`{"user_id":"`+uuid.NewString()+`","amount":"1","lines":[{"quantity":0}]}`), &req))
	if _, ok := details["lines[0].quantity"]; !ok {
		t.Fatalf("expected nested field path, got %v", details)
	}
}

func TestDecodeJSONBodyRejectsUnknownAndTrailingData(t *testing.T) {
	var req payoutRequest
	if err := DecodeJSONBody(post(`{"amount":"1","surprise":true}`), &req); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected unknown field rejected, got %v", err)
	}
	if err := DecodeJSONBody(post(`{"user_id":"`+uuid.NewString()+`","amount":"1"}{}`), &req); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected trailing object rejected, got %v", err)
	}
}

func TestPageParams(t *testing.T) {
	params, err := PageParams(httptest.NewRequest(http.MethodGet, "/?cursor=%20abc%20", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Limit != pagination.DefaultLimit || params.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", params)
	}

	params, err = PageParams(httptest.NewRequest(http.MethodGet, "/?limit=10", nil))
	if err != nil || params.Limit != 10 {
		t.Fatalf("expected limit 10, got %+v %v", params, err)
	}

	for _, raw := range []string{"0", "101", "ten"} {
		if _, err := PageParams(httptest.NewRequest(http.MethodGet, "/?limit="+raw, nil)); err == nil {
			t.Fatalf("expected limit %q rejected", raw)
		}
	}
}

func TestQueryUUIDAndBool(t *testing.T) {
	id := uuid.New()
	r := httptest.NewRequest(http.MethodGet, "/?user_id="+id.String()+"&unreadOnly=true", nil)
	got, err := QueryUUID(r, "user_id")
	if err != nil || got == nil || *got != id {
		t.Fatalf("unexpected uuid %v %v", got, err)
	}
	if missing, err := QueryUUID(r, "order_id"); err != nil || missing != nil {
		t.Fatalf("expected nil for absent key")
	}
	if unread, err := QueryBool(r, "unreadOnly"); err != nil || !unread {
		t.Fatalf("expected unreadOnly true")
	}
	bad := httptest.NewRequest(http.MethodGet, "/?user_id=nope&unreadOnly=sometimes", nil)
	if _, err := QueryUUID(bad, "user_id"); err == nil {
		t.Fatalf("expected invalid uuid error")
	}
	if _, err := QueryBool(bad, "unreadOnly"); err == nil {
		t.Fatalf("expected invalid bool error")
	}
}
