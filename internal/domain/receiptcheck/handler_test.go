package receiptcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hakuto-dental/clinic-server/internal/domain/billing"
	"github.com/hakuto-dental/clinic-server/internal/domain/chart"
	"github.com/hakuto-dental/clinic-server/internal/domain/patient"
)

type ruleRepoStub struct{}

func (ruleRepoStub) LoadRuleSet(ctx context.Context) (*RuleSet, error) {
	return emptyRuleSet(), nil
}

type failingRuleRepo struct{}

func (failingRuleRepo) LoadRuleSet(ctx context.Context) (*RuleSet, error) {
	return nil, fmt.Errorf("connection refused")
}

type billingStub struct {
	records []*billing.Record
}

func (b *billingStub) ListMonth(ctx context.Context, month string) ([]*billing.Record, error) {
	from, to, err := billing.MonthRange(month)
	if err != nil {
		return nil, err
	}
	var out []*billing.Record
	for _, r := range b.records {
		if !r.VisitDate.Before(from) && r.VisitDate.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (b *billingStub) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*billing.Record, error) {
	var out []*billing.Record
	for _, id := range ids {
		for _, r := range b.records {
			if r.ID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (b *billingStub) ListPatientRange(ctx context.Context, patientID uuid.UUID, from, to time.Time) ([]*billing.Record, error) {
	var out []*billing.Record
	for _, r := range b.records {
		if r.PatientID == patientID && !r.VisitDate.Before(from) && r.VisitDate.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

type chartsStub struct{}

func (chartsStub) ListDiagnoses(ctx context.Context, patientID uuid.UUID) ([]*chart.Diagnosis, error) {
	return []*chart.Diagnosis{
		{PatientID: patientID, Code: "K02.1", Name: "う蝕", Outcome: chart.OutcomeActive, StartDate: day(1)},
	}, nil
}

type patientsStub struct{}

func (patientsStub) GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	return &patient.Patient{ID: id, BirthDate: time.Date(1985, 4, 12, 0, 0, 0, 0, time.UTC)}, nil
}

func newTestHandler(records ...*billing.Record) *Handler {
	svc := NewService(ruleRepoStub{}, &billingStub{records: records}, chartsStub{}, patientsStub{}, newResolver())
	return NewHandler(svc)
}

func postCheck(t *testing.T, h *Handler, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/receipt-checks", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, h.RunCheck(e.NewContext(req, rec))
}

func TestRunCheck_Month(t *testing.T) {
	pid := uuid.New()
	ok := testRecord(pid, day(3), billing.LineItem{Code: "301000110", Points: 267})
	bad := testRecord(pid, day(10), billing.LineItem{Code: "302000110", Points: 0})
	h := newTestHandler(ok, bad)

	rec, err := postCheck(t, h, `{"month":"2026-08"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var verdicts []*Verdict
	if err := json.Unmarshal(rec.Body.Bytes(), &verdicts); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(verdicts))
	}
	if verdicts[0].Status != "ok" {
		t.Errorf("expected first verdict ok, got %s (%v)", verdicts[0].Status, verdicts[0].Errors)
	}
	if verdicts[1].Status != "error" {
		t.Errorf("expected second verdict error, got %s", verdicts[1].Status)
	}
}

func TestRunCheck_ByIDs(t *testing.T) {
	pid := uuid.New()
	target := testRecord(pid, day(3), billing.LineItem{Code: "301000110", Points: 267})
	other := testRecord(pid, day(5), billing.LineItem{Code: "302000110", Points: 48})
	h := newTestHandler(target, other)

	rec, err := postCheck(t, h, `{"billing_ids":["`+target.ID.String()+`"]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var verdicts []*Verdict
	if err := json.Unmarshal(rec.Body.Bytes(), &verdicts); err != nil {
		t.Fatal(err)
	}
	if len(verdicts) != 1 || verdicts[0].BillingID != target.ID {
		t.Errorf("expected one verdict for the requested record, got %d", len(verdicts))
	}
}

func TestRunCheck_BadInput(t *testing.T) {
	h := newTestHandler()

	cases := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"malformed month", `{"month":"08/2026"}`},
		{"invalid billing id", `{"billing_ids":["not-a-uuid"]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := postCheck(t, h, tc.body)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %v", err)
			}
		})
	}
}

func TestRunCheck_LoadFailureIsGeneric500(t *testing.T) {
	svc := NewService(failingRuleRepo{}, &billingStub{}, chartsStub{}, patientsStub{}, newResolver())
	h := NewHandler(svc)

	_, err := postCheck(t, h, `{"month":"2026-08"}`)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}
	if msg, _ := httpErr.Message.(string); strings.Contains(msg, "connection refused") {
		t.Errorf("database error text must not surface: %q", msg)
	}
}
