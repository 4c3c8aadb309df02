package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/hakuto-dental/clinic-server/internal/domain/chart"
)

type mockRepo struct {
	sessions map[uuid.UUID]*Session
}

func newMockRepo() *mockRepo {
	return &mockRepo{sessions: make(map[uuid.UUID]*Session)}
}

func (m *mockRepo) Create(ctx context.Context, s *Session) error {
	s.ID = uuid.New()
	m.sessions[s.ID] = s
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return s, nil
}

func (m *mockRepo) Update(ctx context.Context, s *Session) error {
	if _, ok := m.sessions[s.ID]; !ok {
		return fmt.Errorf("not found")
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *mockRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	var out []*Session
	for _, s := range m.sessions {
		if s.PatientID == patientID {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

type fakeAI struct {
	transcript    string
	transcribeErr error
	draft         SOAPDraft
	chatErr       error
	lastUser      string
}

func (f *fakeAI) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if f.transcribeErr != nil {
		return "", f.transcribeErr
	}
	return f.transcript, nil
}

func (f *fakeAI) ChatJSON(ctx context.Context, system, user string, out interface{}) error {
	if f.chatErr != nil {
		return f.chatErr
	}
	f.lastUser = user
	raw, _ := json.Marshal(f.draft)
	return json.Unmarshal(raw, out)
}

type mockNotes struct {
	created []*chart.Note
}

func (m *mockNotes) CreateNote(ctx context.Context, n *chart.Note) error {
	n.ID = uuid.New()
	m.created = append(m.created, n)
	return nil
}

func TestStartSession(t *testing.T) {
	repo := newMockRepo()
	aiClient := &fakeAI{transcript: "右下の奥歯が冷たいものでしみる、とのこと。"}
	svc := NewService(repo, aiClient, &mockNotes{})

	session, err := svc.StartSession(context.Background(), uuid.New(), "dr-tanaka", "visit.webm", strings.NewReader("audio"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Status != StatusTranscribed {
		t.Errorf("expected status %s, got %s", StatusTranscribed, session.Status)
	}
	if session.Transcript != aiClient.transcript {
		t.Errorf("transcript not stored: %q", session.Transcript)
	}
	if _, ok := repo.sessions[session.ID]; !ok {
		t.Error("session not persisted")
	}
}

func TestStartSession_EmptyTranscript(t *testing.T) {
	svc := NewService(newMockRepo(), &fakeAI{transcript: "   "}, &mockNotes{})

	_, err := svc.StartSession(context.Background(), uuid.New(), "dr-tanaka", "visit.webm", strings.NewReader("audio"))
	if err == nil {
		t.Fatal("expected error for blank transcript")
	}
}

func TestStartSession_Validation(t *testing.T) {
	svc := NewService(newMockRepo(), &fakeAI{transcript: "x"}, &mockNotes{})

	if _, err := svc.StartSession(context.Background(), uuid.Nil, "dr", "f", strings.NewReader("a")); err == nil {
		t.Error("expected error for missing patient")
	}
	if _, err := svc.StartSession(context.Background(), uuid.New(), "", "f", strings.NewReader("a")); err == nil {
		t.Error("expected error for missing author")
	}
}

func TestDraftNote(t *testing.T) {
	repo := newMockRepo()
	aiClient := &fakeAI{
		transcript: "しみる症状の訴え。",
		draft: SOAPDraft{
			Subjective: "冷水痛の訴え",
			Objective:  "右下6番に実質欠損",
			Assessment: "う蝕 C2 の疑い",
			Plan:       "充填処置を予定",
		},
	}
	svc := NewService(repo, aiClient, &mockNotes{})

	session, err := svc.StartSession(context.Background(), uuid.New(), "dr-tanaka", "visit.webm", strings.NewReader("audio"))
	if err != nil {
		t.Fatal(err)
	}

	drafted, err := svc.DraftNote(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if drafted.Status != StatusDrafted {
		t.Errorf("expected status %s, got %s", StatusDrafted, drafted.Status)
	}
	if drafted.Draft == nil || drafted.Draft.Assessment != "う蝕 C2 の疑い" {
		t.Errorf("draft not stored: %+v", drafted.Draft)
	}
	if aiClient.lastUser != session.Transcript {
		t.Errorf("model must receive the transcript, got %q", aiClient.lastUser)
	}
}

func TestDraftNote_EmptyDraft(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &fakeAI{transcript: "x"}, &mockNotes{})

	session, err := svc.StartSession(context.Background(), uuid.New(), "dr", "f", strings.NewReader("a"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.DraftNote(context.Background(), session.ID); err == nil {
		t.Error("expected error for empty model draft")
	}
}

func TestCommitDraft(t *testing.T) {
	repo := newMockRepo()
	notes := &mockNotes{}
	aiClient := &fakeAI{transcript: "x", draft: SOAPDraft{Subjective: "冷水痛"}}
	svc := NewService(repo, aiClient, notes)

	session, err := svc.StartSession(context.Background(), uuid.New(), "dr-tanaka", "f", strings.NewReader("a"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.DraftNote(context.Background(), session.ID); err != nil {
		t.Fatal(err)
	}

	edited := &SOAPDraft{Subjective: "冷水痛", Plan: "次回充填"}
	committed, err := svc.CommitDraft(context.Background(), session.ID, edited)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if committed.Status != StatusCommitted {
		t.Errorf("expected status %s, got %s", StatusCommitted, committed.Status)
	}
	if len(notes.created) != 1 {
		t.Fatalf("expected one chart note, got %d", len(notes.created))
	}
	note := notes.created[0]
	if note.Source != "ai_draft" {
		t.Errorf("note source must be ai_draft, got %s", note.Source)
	}
	if note.Plan != "次回充填" {
		t.Errorf("edited draft must win, got plan %q", note.Plan)
	}
	if committed.NoteID == nil || *committed.NoteID != note.ID {
		t.Error("session must reference the created note")
	}

	if _, err := svc.CommitDraft(context.Background(), session.ID, nil); err == nil {
		t.Error("expected error for double commit")
	}
}

func TestCommitDraft_WithoutDraft(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &fakeAI{transcript: "x"}, &mockNotes{})

	session, err := svc.StartSession(context.Background(), uuid.New(), "dr", "f", strings.NewReader("a"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CommitDraft(context.Background(), session.ID, nil); err == nil {
		t.Error("expected error when no draft exists")
	}
}

func TestDiscardSession(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &fakeAI{transcript: "x"}, &mockNotes{})

	session, err := svc.StartSession(context.Background(), uuid.New(), "dr", "f", strings.NewReader("a"))
	if err != nil {
		t.Fatal(err)
	}
	discarded, err := svc.DiscardSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if discarded.Status != StatusDiscarded {
		t.Errorf("expected status %s, got %s", StatusDiscarded, discarded.Status)
	}

	// idempotent
	if _, err := svc.DiscardSession(context.Background(), session.ID); err != nil {
		t.Errorf("second discard must be a no-op: %v", err)
	}

	if _, err := svc.DraftNote(context.Background(), session.ID); err == nil {
		t.Error("discarded session must not be draftable")
	}
}
