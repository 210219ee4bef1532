// SPDX-License-Identifier: Apache-2.0

package domain

type RecordStatus string

const (
	RecordActive  RecordStatus = "active"
	RecordRetired RecordStatus = "retired"
)

// Record is a registered carbon-offset project. The ID is derived from the
// identity fields (see DeriveRecordID); once inserted a record is never
// updated or deleted. Status is not stored -- it is read off the event
// history.
type Record struct {
	ID           string  `json:"id"`
	ProjectName  string  `json:"project_name"`
	Registry     string  `json:"registry"`
	Vintage      int     `json:"vintage"`
	Quantity     int     `json:"quantity"`
	SerialNumber string  `json:"serial_number"`
	Events       []Event `json:"events"`
}

type CreateRecordParams struct {
	ProjectName  string
	Registry     string
	Vintage      int
	Quantity     int
	SerialNumber string
}

// Status derives the lifecycle state from the event history: retired as soon
// as at least one retirement event exists, active otherwise.
func (r Record) Status() RecordStatus {
	for _, ev := range r.Events {
		if ev.Type == EventRetired {
			return RecordRetired
		}
	}
	return RecordActive
}
