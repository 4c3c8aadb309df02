package chart

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateNote(ctx context.Context, n *Note) error
	GetNote(ctx context.Context, id uuid.UUID) (*Note, error)
	UpdateNote(ctx context.Context, n *Note) error
	DeleteNote(ctx context.Context, id uuid.UUID) error
	ListNotesByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Note, int, error)

	CreateDiagnosis(ctx context.Context, d *Diagnosis) error
	GetDiagnosis(ctx context.Context, id uuid.UUID) (*Diagnosis, error)
	UpdateDiagnosis(ctx context.Context, d *Diagnosis) error
	ListDiagnosesByPatient(ctx context.Context, patientID uuid.UUID) ([]*Diagnosis, error)
}
