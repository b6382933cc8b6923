package httpapi

import (
	"context"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
)

type subjectKey struct{}

// WithSubject stores the authenticated IdP subject. Auth middlewares are the only writers.
func WithSubject(ctx context.Context, subject domain.SubjectID) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

func SubjectFromContext(ctx context.Context) (domain.SubjectID, bool) {
	v, ok := ctx.Value(subjectKey{}).(domain.SubjectID)
	return v, ok && v != ""
}
