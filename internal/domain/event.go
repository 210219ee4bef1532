// SPDX-License-Identifier: Apache-2.0

package domain

import "time"

type EventType string

// Known event types. The column is an open set; consumers must tolerate
// values they do not recognize.
const (
	EventCreated EventType = "created"
	EventRetired EventType = "retired"
)

// Event is one immutable fact in a record's history. ID is assigned by the
// database in insertion order and breaks ties between equal timestamps.
type Event struct {
	ID        int64     `json:"id"`
	RecordID  string    `json:"record_id"`
	Type      EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}
