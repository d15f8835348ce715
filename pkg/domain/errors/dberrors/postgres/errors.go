package postgres

import (
	"fmt"

	domerr "github.com/platefab/platefab/pkg/domain/errors"
)

// requested row is missing.
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}

func (m Missing) Unwrap() error {
	return domerr.ErrMissing
}

// concurrent writers collided on a uniqueness constraint and the
// recovery re-read found nothing.
type Conflict struct {
	Table    string
	Identity string
}

var _ error = Conflict{}

func (c Conflict) Error() string {
	return fmt.Sprintf(
		"insert of %s into %s lost a uniqueness race, and no winning row was found",
		c.Identity, c.Table,
	)
}

func (c Conflict) Unwrap() error {
	return domerr.ErrConflict
}

// a tenancy-root model was handed to the generic delete path.
type RequiresSchemaDrop struct {
	Model string
}

var _ error = RequiresSchemaDrop{}

func (r RequiresSchemaDrop) Error() string {
	return fmt.Sprintf(
		"%s owns a tenant schema; delete it through the schema-drop path",
		r.Model,
	)
}

func (r RequiresSchemaDrop) Unwrap() error {
	return domerr.ErrRequiresSchemaDrop
}

// NotDeletable: the model cannot go through the generic transactional
// delete (distributed tables cannot be targeted deterministically).
type NotDeletable struct {
	Model  string
	Reason string
}

var _ error = NotDeletable{}

func (n NotDeletable) Error() string {
	return fmt.Sprintf("rows of %s can not be deleted here: %s", n.Model, n.Reason)
}

func (n NotDeletable) Unwrap() error {
	return domerr.ErrInvalidArgument
}
