// SPDX-License-Identifier: Apache-2.0

package domain

import "errors"

// ErrNotFound: the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateRecord: an insert collided on the derived id. This is the
// benign concurrent-create race; the service reconciles it and it never
// reaches a caller.
var ErrDuplicateRecord = errors.New("record already exists")

// ErrConflict: project name or serial number is already taken by a record
// with a different derived id. A genuine conflict, surfaced to the caller.
var ErrConflict = errors.New("record conflicts with an existing record")

// ErrUnknownRecord: an event append referenced a record id that is not in
// the records table. The service always verifies existence (or has just
// inserted) first, so seeing this indicates an internal consistency fault.
var ErrUnknownRecord = errors.New("event references unknown record")

var ErrInvalidRecordParams = errors.New("invalid record parameters")
