// Package versioning implements snapshot-on-write over the embedded
// sub-resources of a project: every content update first appends an
// immutable copy of the prior state to the record's history, and deletes
// only ever tombstone.
package versioning

import (
	"errors"
	"time"
)

// ErrAlreadyDeleted rejects updates and repeat deletes against a
// tombstoned record.
var ErrAlreadyDeleted = errors.New("record is deleted")

// Versioned is embedded in every versioned sub-resource (process,
// expectation, output). CreatedAtTime is the domain-level creation time,
// distinct from the row's storage timestamps.
type Versioned struct {
	CreatedAtTime time.Time  `json:"createdAtTime"`
	IsEdited      bool       `json:"isEdited"`
	IsDeleted     bool       `json:"isDeleted"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
}

// Update applies a content edit. appendSnapshot must append the record's
// pre-update state (minus history and edit markers) to its history;
// patch then applies the new values. Neither runs when the record is
// tombstoned.
func Update(v *Versioned, appendSnapshot func(), patch func()) error {
	if v.IsDeleted {
		return ErrAlreadyDeleted
	}
	appendSnapshot()
	v.IsEdited = true
	patch()
	return nil
}

// Delete tombstones the record. A tombstone is not a content edit: no
// snapshot is taken and all fields, including history, stay intact.
func Delete(v *Versioned, now time.Time) error {
	if v.IsDeleted {
		return ErrAlreadyDeleted
	}
	v.IsDeleted = true
	v.DeletedAt = &now
	return nil
}
