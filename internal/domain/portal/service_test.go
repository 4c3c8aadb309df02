package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	checkIns  map[uuid.UUID]*CheckIn
	templates map[uuid.UUID]*QuestionnaireTemplate
	responses []*QuestionnaireResponse
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		checkIns:  make(map[uuid.UUID]*CheckIn),
		templates: make(map[uuid.UUID]*QuestionnaireTemplate),
	}
}

func (m *mockRepo) CreateCheckIn(ctx context.Context, ci *CheckIn) error {
	ci.ID = uuid.New()
	m.checkIns[ci.ID] = ci
	return nil
}

func (m *mockRepo) GetCheckIn(ctx context.Context, id uuid.UUID) (*CheckIn, error) {
	ci, ok := m.checkIns[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return ci, nil
}

func (m *mockRepo) UpdateCheckIn(ctx context.Context, ci *CheckIn) error {
	m.checkIns[ci.ID] = ci
	return nil
}

func (m *mockRepo) ListQueue(ctx context.Context, day time.Time) ([]*CheckIn, error) {
	var out []*CheckIn
	for _, ci := range m.checkIns {
		if ci.Status != StatusDone {
			out = append(out, ci)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckedInAt.Before(out[j].CheckedInAt) })
	return out, nil
}

func (m *mockRepo) FindOpenCheckIn(ctx context.Context, patientID uuid.UUID, day time.Time) (*CheckIn, error) {
	for _, ci := range m.checkIns {
		if ci.PatientID == patientID && ci.Status != StatusDone {
			return ci, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockRepo) CreateTemplate(ctx context.Context, t *QuestionnaireTemplate) error {
	t.ID = uuid.New()
	m.templates[t.ID] = t
	return nil
}

func (m *mockRepo) GetTemplate(ctx context.Context, id uuid.UUID) (*QuestionnaireTemplate, error) {
	t, ok := m.templates[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return t, nil
}

func (m *mockRepo) ListTemplates(ctx context.Context, activeOnly bool) ([]*QuestionnaireTemplate, error) {
	var out []*QuestionnaireTemplate
	for _, t := range m.templates {
		if !activeOnly || t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockRepo) UpdateTemplate(ctx context.Context, t *QuestionnaireTemplate) error {
	m.templates[t.ID] = t
	return nil
}

func (m *mockRepo) CreateResponse(ctx context.Context, r *QuestionnaireResponse) error {
	r.ID = uuid.New()
	m.responses = append(m.responses, r)
	return nil
}

func (m *mockRepo) ListResponsesByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*QuestionnaireResponse, int, error) {
	var out []*QuestionnaireResponse
	for _, r := range m.responses {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func TestCheckInPatient(t *testing.T) {
	svc := NewService(newMockRepo())
	pid := uuid.New()

	ci, err := svc.CheckInPatient(context.Background(), pid, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ci.Status != StatusWaiting {
		t.Errorf("expected waiting status, got %s", ci.Status)
	}

	// A second open check-in for the same patient is rejected.
	if _, err := svc.CheckInPatient(context.Background(), pid, nil); err == nil {
		t.Error("expected error for duplicate check-in")
	}
}

func TestAdvanceCheckIn_WalksQueue(t *testing.T) {
	svc := NewService(newMockRepo())
	ci, err := svc.CheckInPatient(context.Background(), uuid.New(), nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, next := range []string{StatusCalled, StatusInChair, StatusDone} {
		ci, err = svc.AdvanceCheckIn(context.Background(), ci.ID, next)
		if err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
		if ci.Status != next {
			t.Errorf("expected status %s, got %s", next, ci.Status)
		}
	}
	if ci.CalledAt == nil || ci.CompletedAt == nil {
		t.Error("expected called_at and completed_at to be stamped")
	}
}

func TestAdvanceCheckIn_InvalidTransition(t *testing.T) {
	svc := NewService(newMockRepo())
	ci, err := svc.CheckInPatient(context.Background(), uuid.New(), nil)
	if err != nil {
		t.Fatal(err)
	}

	// waiting -> done skips the chair.
	if _, err := svc.AdvanceCheckIn(context.Background(), ci.ID, StatusDone); err == nil {
		t.Error("expected error for waiting -> done")
	}
}

func TestSubmitResponse(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	tmpl := &QuestionnaireTemplate{
		Title:  "初診問診票",
		Items:  json.RawMessage(`[{"id":"q1","label":"主訴"}]`),
		Active: true,
	}
	if err := svc.CreateTemplate(context.Background(), tmpl); err != nil {
		t.Fatal(err)
	}

	r := &QuestionnaireResponse{
		TemplateID: tmpl.ID,
		PatientID:  uuid.New(),
		Answers:    json.RawMessage(`{"q1":"歯が痛い"}`),
	}
	if err := svc.SubmitResponse(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.SubmittedAt.IsZero() {
		t.Error("expected submitted_at to be set")
	}

	// Unknown template is rejected.
	bad := &QuestionnaireResponse{TemplateID: uuid.New(), PatientID: uuid.New(), Answers: json.RawMessage(`{}`)}
	if err := svc.SubmitResponse(context.Background(), bad); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestCreateTemplate_Validation(t *testing.T) {
	svc := NewService(newMockRepo())

	if err := svc.CreateTemplate(context.Background(), &QuestionnaireTemplate{Items: json.RawMessage(`[]`)}); err == nil {
		t.Error("expected error for missing title")
	}
	if err := svc.CreateTemplate(context.Background(), &QuestionnaireTemplate{Title: "t", Items: json.RawMessage(`{bad`)}); err == nil {
		t.Error("expected error for invalid items JSON")
	}
}
