package members

import "github.com/ironhall-fitness/gym-access-api/internal/domain"

// Optional is a tri-state field used to distinguish:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Optional[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Optional[T] { return Optional[T]{} }
func Null[T any]() Optional[T]        { return Optional[T]{specified: true, isNull: true} }
func Some[T any](v T) Optional[T]     { return Optional[T]{specified: true, value: v} }

func (o Optional[T]) IsSpecified() bool { return o.specified }
func (o Optional[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Optional[T]) Value() T          { return o.value }

type UpdateMyMemberProfileInput struct {
	DisplayName Optional[string]
	Email       Optional[string] // cannot be null
	Phone       Optional[string] // may be null
}

type CreateMyMemberInput struct {
	DisplayName string
	Email       string
	Phone       *string
}

// SetRoleInput changes another member's role. Only admins may call it.
type SetRoleInput struct {
	MemberID domain.MemberID
	Role     domain.Role
}
