package notify

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminwatch/terminwatch/internal/domain"
)

func TestRenderer_RenderFound(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	payload := Payload{
		ServiceName:  "Umtausch Führerschein",
		CategoryName: "Fahrerlaubnis",
		Slots: []domain.AppointmentSlot{
			{Date: "2025-11-18", Time: "14:00"},
			{Date: "2025-11-18", Time: "14:05", Location: "Dienststelle Nord"},
			{Date: domain.DateUnresolved, Time: "09:30"},
		},
		BookingURL: "https://termine.example.de/select2?md=3",
		CheckedAt:  time.Date(2025, 11, 17, 10, 30, 0, 0, time.UTC),
	}

	body, err := renderer.RenderFound(payload)
	require.NoError(t, err)

	assert.Contains(t, body, "Umtausch Führerschein")
	assert.Contains(t, body, "18.11.2025 um 14:00 Uhr")
	assert.Contains(t, body, "Dienststelle Nord")
	assert.Contains(t, body, "Datum unbekannt")
	assert.Contains(t, body, `<a href="https://termine.example.de/select2?md=3">`)
	assert.NotContains(t, body, "weitere Termine")
}

func TestRenderer_RenderFound_CapsSlots(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	var slots []domain.AppointmentSlot
	for i := 0; i < 20; i++ {
		slots = append(slots, domain.AppointmentSlot{
			Date: "2025-11-18",
			Time: fmt.Sprintf("%02d:00", i),
		})
	}
	svc := &domain.Service{BookingURL: "https://termine.example.de"}
	result := &domain.CheckResult{
		Status:      domain.CheckStatusAppointmentsFound,
		Slots:       slots,
		ServiceName: "Umtausch Führerschein",
		FinishedAt:  time.Now(),
	}

	payload := NewPayload(svc, result)
	require.Len(t, payload.Slots, maxSlotsShown)
	assert.Equal(t, 5, payload.MoreCount)

	body, err := renderer.RenderFound(payload)
	require.NoError(t, err)
	assert.Contains(t, body, "und 5 weitere Termine")
	assert.Equal(t, maxSlotsShown, strings.Count(body, "📅"))
}

func TestRenderer_RenderFound_EscapesHTML(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	payload := Payload{
		ServiceName: "An- <b>oder</b> Ummeldung",
		Slots:       []domain.AppointmentSlot{{Date: "2025-11-18", Time: "14:00"}},
		BookingURL:  "https://termine.example.de",
	}

	body, err := renderer.RenderFound(payload)
	require.NoError(t, err)
	assert.Contains(t, body, "&lt;b&gt;oder&lt;/b&gt;")
}

func TestDisplayDate(t *testing.T) {
	assert.Equal(t, "18.11.2025", displayDate("2025-11-18"))
	assert.Equal(t, "Datum unbekannt", displayDate(domain.DateUnresolved))
	assert.Equal(t, "Datum unbekannt", displayDate(""))
}
