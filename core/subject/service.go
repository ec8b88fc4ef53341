package subject

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("subject not found")
	ErrInUse    = errors.New("subject still has uploaded files")

	// OrderingFields are the fields subjects may be ordered by.
	OrderingFields = map[string]bool{"created_at": true, "name": true, "code": true, "credits": true}
	// DefaultOrdering lists newest subjects first.
	DefaultOrdering = []core.DBOrdering{{Field: "created_at"}, {Field: "id"}}
)

type (
	Repository interface {
		CreateSubject(ctx context.Context, subj Subject) (Subject, error)
		GetSubjectByID(ctx context.Context, id string) (Subject, error)
		// QuerySubjectsByProfessor returns the professor's subjects ordered by orderings.
		QuerySubjectsByProfessor(ctx context.Context, professorID string, orderings []core.DBOrdering) ([]Subject, error)
		UpdateSubject(ctx context.Context, subj Subject) (Subject, error)
		DeleteSubject(ctx context.Context, id string) error
	}

	// UsageCounter counts what still references a subject.
	UsageCounter interface {
		CountBySubject(ctx context.Context, subjectID string) (int, error)
	}

	Service struct {
		repo     Repository
		counters []UsageCounter
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GuardDeletion refuses subject deletion while any counter reports references.
func (svc *Service) GuardDeletion(counters ...UsageCounter) {
	svc.counters = append(svc.counters, counters...)
}

func (svc *Service) Create(ctx context.Context, ident user.Identity, ns NewSubject) (Subject, error) {
	if ident.IsZero() {
		return Subject{}, core.NewAuthError("create subject", errors.New("no active session"))
	}
	now := time.Now().UTC()
	subj := Subject{
		ID:          uuid.NewString(),
		ProfessorID: ident.ID,
		Name:        ns.Name,
		Code:        GenerateCode(ns.Name),
		Credits:     ns.Credits,
		Description: ns.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateSubject(ctx, subj)
}

func (svc *Service) QueryByProfessor(ctx context.Context, ident user.Identity, orderings []core.DBOrdering) ([]Subject, error) {
	return svc.repo.QuerySubjectsByProfessor(ctx, ident.ID, orderings)
}

// Get returns the subject if it belongs to ident. Other professors' subjects are not found.
func (svc *Service) Get(ctx context.Context, ident user.Identity, id string) (Subject, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Subject{}, ErrNotFound
	}
	subj, err := svc.repo.GetSubjectByID(ctx, id)
	if err != nil {
		return Subject{}, err
	}
	if subj.ProfessorID != ident.ID {
		return Subject{}, ErrNotFound
	}
	return subj, nil
}

func (svc *Service) Update(ctx context.Context, orig Subject, us UpdateSubject) (Subject, error) {
	subj := orig
	if us.Name != orig.Name {
		subj.Name = us.Name
		subj.Code = GenerateCode(us.Name)
	}
	subj.Credits = us.Credits
	if us.Description != nil {
		subj.Description = *us.Description
	}
	subj.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSubject(ctx, subj)
}

func (svc *Service) Delete(ctx context.Context, subj Subject) error {
	for _, c := range svc.counters {
		n, err := c.CountBySubject(ctx, subj.ID)
		if err != nil {
			return errors.Wrap(err, "counting subject usage")
		}
		if n > 0 {
			return core.NewValidationError(ErrInUse)
		}
	}
	return svc.repo.DeleteSubject(ctx, subj.ID)
}
