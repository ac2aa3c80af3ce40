package handlers

import (
	"context"
	"net/http"
	"testing"

	"till/internal/models"
	"till/internal/rates"
	"till/internal/services"
)

func TestRecordInSuccess(t *testing.T) {
	var got services.RecordRequest
	handler := newTestHandler(handlerStubs{
		till: stubTillService{
			inFn: func(_ context.Context, req services.RecordRequest) (models.TillTransaction, error) {
				got = req
				return models.TillTransaction{ID: "tx-1"}, nil
			},
		},
	})
	body := []byte(`{"type":"rental_payment","currency":"THB","amount":"1500.00"}`)
	req := authedRequest(t, http.MethodPost, "/api/sessions/s-1/transactions/in", body, "staff-1")
	rr := serveAuthed(handler.RecordIn, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.Amount != 150000 {
		t.Fatalf("expected amount 150000 minor units, got %d", got.Amount)
	}
	if got.StaffID != "staff-1" {
		t.Fatalf("staff id must come from the token, got %q", got.StaffID)
	}
}

func TestRecordInRejectsBadAmount(t *testing.T) {
	handler := newTestHandler(handlerStubs{
		till: stubTillService{
			inFn: func(context.Context, services.RecordRequest) (models.TillTransaction, error) {
				t.Fatalf("service must not be called on a parse failure")
				return models.TillTransaction{}, nil
			},
		},
	})
	body := []byte(`{"type":"rental_payment","currency":"THB","amount":"1.234"}`)
	req := authedRequest(t, http.MethodPost, "/api/sessions/s-1/transactions/in", body, "staff-1")
	rr := serveAuthed(handler.RecordIn, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRecordInMissingRate(t *testing.T) {
	handler := newTestHandler(handlerStubs{
		till: stubTillService{
			inFn: func(context.Context, services.RecordRequest) (models.TillTransaction, error) {
				return models.TillTransaction{}, rates.ErrRateNotSet
			},
		},
	})
	body := []byte(`{"type":"rental_payment","currency":"EUR","amount":"20.00"}`)
	req := authedRequest(t, http.MethodPost, "/api/sessions/s-1/transactions/in", body, "staff-1")
	rr := serveAuthed(handler.RecordIn, req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestRecordOutInsufficientCash(t *testing.T) {
	handler := newTestHandler(handlerStubs{
		till: stubTillService{
			outFn: func(context.Context, services.RecordRequest) (models.TillTransaction, error) {
				return models.TillTransaction{}, services.ErrInsufficientCash
			},
		},
	})
	body := []byte(`{"type":"deposit_refund","currency":"THB","amount":"9000.00"}`)
	req := authedRequest(t, http.MethodPost, "/api/sessions/s-1/transactions/out", body, "staff-1")
	rr := serveAuthed(handler.RecordOut, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestVoidSelfApproval(t *testing.T) {
	handler := newTestHandler(handlerStubs{
		till: stubTillService{
			voidFn: func(context.Context, services.VoidRequest) (models.TillTransaction, error) {
				return models.TillTransaction{}, services.ErrSelfApproval
			},
		},
	})
	body := []byte(`{"reason":"wrong amount","approved_by":"staff-1"}`)
	req := authedRequest(t, http.MethodPost, "/api/transactions/tx-1/void", body, "staff-1")
	rr := serveAuthed(handler.VoidTransaction, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRecordDropParsesLines(t *testing.T) {
	var got services.MultiCurrencyDropRequest
	handler := newTestHandler(handlerStubs{
		till: stubTillService{
			dropFn: func(_ context.Context, req services.MultiCurrencyDropRequest) ([]models.TillTransaction, error) {
				got = req
				return []models.TillTransaction{{ID: "tx-1"}, {ID: "tx-2"}}, nil
			},
		},
	})
	body := []byte(`{"lines":[{"currency":"THB","amount":"1000.00"},{"currency":"USD","amount":"50.00"}]}`)
	req := authedRequest(t, http.MethodPost, "/api/sessions/s-1/drops", body, "staff-1")
	rr := serveAuthed(handler.RecordDrop, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(got.Lines) != 2 {
		t.Fatalf("expected 2 drop lines, got %d", len(got.Lines))
	}
	if got.Lines[1].Currency != "USD" || got.Lines[1].Amount != 5000 {
		t.Fatalf("unexpected second line: %+v", got.Lines[1])
	}
}
