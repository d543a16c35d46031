package domain

import "time"

// CheckStatus represents the outcome classification of one appointment check.
type CheckStatus string

// Check statuses.
const (
	CheckStatusAppointmentsFound CheckStatus = "appointments_found"
	CheckStatusNoAppointments    CheckStatus = "no_appointments"
	CheckStatusError             CheckStatus = "error"
	CheckStatusUnknown           CheckStatus = "unknown"
)

// IsValid checks if the check status is valid.
func (s CheckStatus) IsValid() bool {
	switch s {
	case CheckStatusAppointmentsFound, CheckStatusNoAppointments,
		CheckStatusError, CheckStatusUnknown:
		return true
	}
	return false
}

// SlotDate is an ISO calendar date (YYYY-MM-DD) or the explicit unresolved
// marker. Unresolved means a time token was found but no date header could
// be correlated to it; it is a first-class value, never a silent default.
type SlotDate string

// DateUnresolved marks a slot whose date could not be correlated.
const DateUnresolved SlotDate = "unresolved"

// Resolved reports whether the date carries an actual calendar date.
func (d SlotDate) Resolved() bool {
	return d != DateUnresolved && d != ""
}

// AppointmentSlot is a single bookable date/time unit extracted from a
// result page. RawText retains the source text for diagnostics and is
// excluded from slot identity.
type AppointmentSlot struct {
	Date     SlotDate `json:"date"`
	Time     string   `json:"time"` // 24h clock, HH:MM
	Location string   `json:"location,omitempty"`
	RawText  string   `json:"raw_text"`
}

// Identity returns the slot identity tuple used for notification
// deduplication. RawText is deliberately excluded.
func (s AppointmentSlot) Identity() string {
	return string(s.Date) + "|" + s.Time + "|" + s.Location
}

// CheckResult is the immutable outcome of one navigation+extraction pass.
type CheckResult struct {
	ID             string            `json:"id"`
	SubscriptionID string            `json:"subscription_id"`
	Status         CheckStatus       `json:"status"`
	Slots          []AppointmentSlot `json:"slots"`
	EvidenceRef    string            `json:"evidence_ref,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	ServiceName    string            `json:"service_name"`
	CategoryName   string            `json:"category_name"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
}

// Available reports whether the check found bookable slots.
func (r *CheckResult) Available() bool {
	return r.Status == CheckStatusAppointmentsFound && len(r.Slots) > 0
}
