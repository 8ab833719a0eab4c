package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized},
		{code: CodeForbidden, status: http.StatusForbidden},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeConflict, status: http.StatusConflict},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusBadGateway, retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestReasonSurvivesWrapping(t *testing.T) {
	base := New(CodeStateConflict, "sub-order is not cancellable").WithReason(ReasonOrderCancel)
	wrapped := fmt.Errorf("cancel: %w", base)

	if got := ReasonOf(wrapped); got != ReasonOrderCancel {
		t.Fatalf("expected reason %q, got %q", ReasonOrderCancel, got)
	}
	if got := CodeOf(wrapped); got != CodeStateConflict {
		t.Fatalf("expected code %s, got %s", CodeStateConflict, got)
	}
	if base.Error() != "STATE_CONFLICT(order-cancel-error): sub-order is not cancellable" {
		t.Fatalf("unexpected error string %q", base.Error())
	}
}

func TestReasonOfFindsInnerReason(t *testing.T) {
	inner := New(CodeStateConflict, "insufficient funds").WithReason(ReasonInsufficientBalance)
	outer := Wrap(CodeStateConflict, inner, "approve withdraw")
	if got := ReasonOf(outer); got != ReasonInsufficientBalance {
		t.Fatalf("expected inner reason, got %q", got)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "courier call failed")
	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped error to match cause")
	}
	if err.Error() != "DEPENDENCY_ERROR: courier call failed" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
}

func TestAsReturnsNilForPlainErrors(t *testing.T) {
	if As(stdErrors.New("plain")) != nil {
		t.Fatalf("expected nil for untyped error")
	}
	if CodeOf(nil) != "" || ReasonOf(nil) != "" {
		t.Fatalf("expected empty code and reason for nil")
	}
}

func TestDiagnoseCollectsChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", Wrap(CodeInternal, stdErrors.New("inner"), "save order").WithReason(ReasonSaveError))
	d := Diagnose(err)
	if d.Code != CodeInternal {
		t.Fatalf("expected internal code, got %s", d.Code)
	}
	if d.Reason != ReasonSaveError {
		t.Fatalf("expected save-error reason, got %s", d.Reason)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d", len(d.Chain))
	}
	if d.PG != nil {
		t.Fatalf("expected no postgres diagnostics")
	}
	fields := d.Fields()
	if fields["error_reason"] != string(ReasonSaveError) {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["pg_code"]; ok {
		t.Fatalf("pg fields should be omitted")
	}
}

func TestDiagnoseReadsPostgresErrors(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "withdraw_requests_pending_uniq", TableName: "withdraw_requests"}
	d := Diagnose(Wrap(CodeConflict, pgErr, "create withdraw"))
	if d.PG == nil || d.PG.Code != "23505" || d.PG.Constraint != "withdraw_requests_pending_uniq" {
		t.Fatalf("unexpected diagnostics %+v", d.PG)
	}
	if d.Fields()["pg_table"] != "withdraw_requests" {
		t.Fatalf("expected pg_table field")
	}
}
