package notify

import (
	"time"

	"github.com/terminwatch/terminwatch/internal/domain"
)

// maxSlotsShown caps how many slots one message lists. The remainder is
// summarized so Telegram's message size limit is never a concern.
const maxSlotsShown = 15

// Payload carries everything a message template needs.
type Payload struct {
	ServiceName  string
	CategoryName string
	Slots        []domain.AppointmentSlot
	MoreCount    int
	BookingURL   string
	CheckedAt    time.Time
}

// NewPayload builds a message payload from a check result, capping the
// listed slots at maxSlotsShown.
func NewPayload(svc *domain.Service, result *domain.CheckResult) Payload {
	slots := result.Slots
	more := 0
	if len(slots) > maxSlotsShown {
		more = len(slots) - maxSlotsShown
		slots = slots[:maxSlotsShown]
	}
	return Payload{
		ServiceName:  result.ServiceName,
		CategoryName: result.CategoryName,
		Slots:        slots,
		MoreCount:    more,
		BookingURL:   svc.BookingURL,
		CheckedAt:    result.FinishedAt,
	}
}
