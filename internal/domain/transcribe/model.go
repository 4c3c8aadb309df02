// Package transcribe turns chairside conversation recordings into SOAP note
// drafts. A session moves through recorded audio, transcript, AI draft, and
// finally a committed chart note; the draft never reaches the chart without a
// dentist's review.
package transcribe

import (
	"time"

	"github.com/google/uuid"
)

// Session statuses.
const (
	StatusTranscribed = "transcribed"
	StatusDrafted     = "drafted"
	StatusCommitted   = "committed"
	StatusDiscarded   = "discarded"
)

// SOAPDraft is the structured note the model proposes from a transcript.
type SOAPDraft struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`
}

// Session maps to the transcribe_session table.
type Session struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	AuthorID      string     `db:"author_id" json:"author_id"`
	AudioFilename string     `db:"audio_filename" json:"audio_filename"`
	Transcript    string     `db:"transcript" json:"transcript"`
	Draft         *SOAPDraft `db:"draft" json:"draft,omitempty"`
	Status        string     `db:"status" json:"status"`
	NoteID        *uuid.UUID `db:"note_id" json:"note_id,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
