package entry

import (
	"strconv"
	"time"
)

// Member is an identity authorized for this room.
type Member struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CompanyID int64  `json:"companyId"`
}

// EntryLogRecord records one unlock. Timestamp is in milliseconds since the epoch.
type EntryLogRecord struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Timestamp int64  `json:"ts"`
}

// NewEntryLogRecord builds a record stamped with t.
func NewEntryLogRecord(id int64, name string, t time.Time) EntryLogRecord {
	return EntryLogRecord{ID: id, Name: name, Timestamp: t.UnixNano() / int64(time.Millisecond)}
}

// Time returns the record timestamp.
func (r EntryLogRecord) Time() time.Time {
	return time.Unix(0, r.Timestamp*int64(time.Millisecond))
}

// IsGuest reports whether the record was a guest admission.
func (r EntryLogRecord) IsGuest() bool {
	return r.ID == GuestID
}

// DisplayName returns the name to show for the record.
func (r EntryLogRecord) DisplayName() string {
	if r.IsGuest() {
		return "Guest"
	}
	return r.Name
}

// DisplayID returns the id to show for the record.
func (r EntryLogRecord) DisplayID() string {
	if r.IsGuest() {
		return "#"
	}
	return strconv.FormatInt(r.ID, 10)
}
