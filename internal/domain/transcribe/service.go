package transcribe

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/hakuto-dental/clinic-server/internal/domain/chart"
)

// soapSystemPrompt instructs the model to produce a SOAP note from a
// Japanese chairside conversation transcript. JSON mode guarantees the
// response shape; content quality is the dentist's to review.
const soapSystemPrompt = `あなたは歯科医院の診療記録作成を補助するアシスタントです。
診療中の会話の文字起こしから、SOAP形式のカルテ下書きを作成してください。
出力は次のキーを持つJSONオブジェクトのみ: subjective, objective, assessment, plan。
会話に現れない情報を推測で補わないこと。該当する内容がないキーは空文字列にすること。`

// SpeechClient is the slice of the AI client this package uses.
type SpeechClient interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
	ChatJSON(ctx context.Context, system, user string, out interface{}) error
}

// NoteSink receives the committed chart note.
type NoteSink interface {
	CreateNote(ctx context.Context, n *chart.Note) error
}

type Service struct {
	repo  Repository
	ai    SpeechClient
	notes NoteSink
}

func NewService(repo Repository, ai SpeechClient, notes NoteSink) *Service {
	return &Service{repo: repo, ai: ai, notes: notes}
}

// StartSession uploads the recording for transcription and stores the
// transcript. The audio itself is not retained.
func (s *Service) StartSession(ctx context.Context, patientID uuid.UUID, authorID, filename string, audio io.Reader) (*Session, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if authorID == "" {
		return nil, fmt.Errorf("author_id is required")
	}
	if filename == "" {
		filename = "recording.webm"
	}

	transcript, err := s.ai.Transcribe(ctx, filename, audio)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("transcription produced no text")
	}

	session := &Session{
		PatientID:     patientID,
		AuthorID:      authorID,
		AudioFilename: filename,
		Transcript:    transcript,
		Status:        StatusTranscribed,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// DraftNote asks the model for a SOAP draft of the session's transcript.
// Re-drafting a session replaces the previous draft.
func (s *Service) DraftNote(ctx context.Context, id uuid.UUID) (*Session, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	if session.Status == StatusCommitted || session.Status == StatusDiscarded {
		return nil, fmt.Errorf("session is %s and cannot be drafted", session.Status)
	}

	var draft SOAPDraft
	if err := s.ai.ChatJSON(ctx, soapSystemPrompt, session.Transcript, &draft); err != nil {
		return nil, err
	}
	if draft.Subjective == "" && draft.Objective == "" && draft.Assessment == "" && draft.Plan == "" {
		return nil, fmt.Errorf("model returned an empty draft")
	}

	session.Draft = &draft
	session.Status = StatusDrafted
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// CommitDraft writes the reviewed draft to the patient's chart. The caller may
// pass an edited draft; nil commits the stored one as-is. The resulting note
// is marked ai_draft so its origin stays visible in the chart.
func (s *Service) CommitDraft(ctx context.Context, id uuid.UUID, edited *SOAPDraft) (*Session, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	if session.Status == StatusCommitted {
		return nil, fmt.Errorf("session already committed")
	}
	if session.Status == StatusDiscarded {
		return nil, fmt.Errorf("session was discarded")
	}

	draft := session.Draft
	if edited != nil {
		draft = edited
	}
	if draft == nil {
		return nil, fmt.Errorf("session has no draft to commit")
	}

	note := &chart.Note{
		PatientID:  session.PatientID,
		AuthorID:   session.AuthorID,
		Subjective: draft.Subjective,
		Objective:  draft.Objective,
		Assessment: draft.Assessment,
		Plan:       draft.Plan,
		Source:     "ai_draft",
	}
	if err := s.notes.CreateNote(ctx, note); err != nil {
		return nil, fmt.Errorf("commit draft: %w", err)
	}

	session.Draft = draft
	session.Status = StatusCommitted
	session.NoteID = &note.ID
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// DiscardSession abandons a session; discarding twice is a no-op.
func (s *Service) DiscardSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	if session.Status == StatusDiscarded {
		return session, nil
	}
	if session.Status == StatusCommitted {
		return nil, fmt.Errorf("committed session cannot be discarded")
	}
	session.Status = StatusDiscarded
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
