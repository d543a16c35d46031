package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/terminwatch/terminwatch/internal/domain"
)

// Strategy is one positive-extraction attempt. Strategies are pure: the
// returned slots depend only on the document. The engine tries strategies
// in priority order and stops at the first one yielding at least one slot.
type Strategy interface {
	Name() string
	Extract(doc *goquery.Document) []domain.AppointmentSlot
}

// DefaultStrategies returns the strategy pipeline in priority order:
// structured calendar cells, then free-text time tokens, then loose list
// items.
func DefaultStrategies() []Strategy {
	return []Strategy{
		calendarStrategy{},
		timeTokenStrategy{},
		listItemStrategy{},
	}
}

// calendarStrategy extracts slots from the accordion calendar the booking
// site renders: a date-bearing header per day, followed by a panel holding
// availability buttons.
type calendarStrategy struct{}

func (calendarStrategy) Name() string { return "calendar" }

func (calendarStrategy) Extract(doc *goquery.Document) []domain.AppointmentSlot {
	var slots []domain.AppointmentSlot

	doc.Find(`h3.ui-accordion-header, h2[aria-controls], h3[aria-controls], [data-termin-date]`).Each(func(_ int, header *goquery.Selection) {
		headerText := Label(header)
		date, ok := ParseDate(headerText)
		if !ok {
			if attr, exists := header.Attr("data-termin-date"); exists {
				date, ok = ParseDate(attr)
			}
			if !ok {
				return
			}
		}

		panel := resolvePanel(doc, header)
		if panel.Length() == 0 {
			return
		}

		panel.Find(`button.suggest_btn, td button, button[data-slot], td.available`).Each(func(_ int, cell *goquery.Selection) {
			raw := NormalizeSpace(cell.Text())
			clock, ok := ParseClockTime(raw)
			if !ok {
				return
			}
			slots = append(slots, domain.AppointmentSlot{
				Date:     date,
				Time:     clock,
				Location: cell.AttrOr("data-location", ""),
				RawText:  headerText + " " + raw,
			})
		})
	})

	return slots
}

// resolvePanel finds the content panel belonging to a calendar header,
// preferring the aria-controls link over structural position.
func resolvePanel(doc *goquery.Document, header *goquery.Selection) *goquery.Selection {
	if id, ok := header.Attr("aria-controls"); ok && id != "" {
		if panel := doc.Find("#" + id); panel.Length() > 0 {
			return panel
		}
	}
	return header.Next()
}

// timeTokenStrategy scans the page for free-text 24-hour clock tokens and
// correlates each to the nearest preceding date header within the same
// structural container. Tokens with no such header stay unresolved.
type timeTokenStrategy struct{}

func (timeTokenStrategy) Name() string { return "time_tokens" }

func (timeTokenStrategy) Extract(doc *goquery.Document) []domain.AppointmentSlot {
	var slots []domain.AppointmentSlot

	doc.Find("body *").Each(func(_ int, sel *goquery.Selection) {
		if sel.Children().Length() > 0 {
			return // only leaf elements carry a single token
		}

		raw := NormalizeSpace(sel.Text())
		clock, ok := ParseClockTime(raw)
		if !ok {
			return
		}

		node := sel.Nodes[0]
		if _, isHeader := isDateHeader(node); isHeader {
			return
		}

		date := nearestPrecedingDate(findContainer(node), node)
		if inline, ok := ParseDate(raw); ok {
			date = inline
		}

		slots = append(slots, domain.AppointmentSlot{
			Date:    date,
			Time:    clock,
			RawText: raw,
		})
	})

	return slots
}

// listItemStrategy is the loosest fallback: generic list items whose text
// looks appointment-shaped (carries a clock token, optionally a date).
type listItemStrategy struct{}

func (listItemStrategy) Name() string { return "list_items" }

func (listItemStrategy) Extract(doc *goquery.Document) []domain.AppointmentSlot {
	var slots []domain.AppointmentSlot

	doc.Find("li").Each(func(_ int, item *goquery.Selection) {
		raw := cleanText(item)
		clock, ok := ParseClockTime(raw)
		if !ok {
			return
		}

		date := domain.DateUnresolved
		if d, ok := ParseDate(raw); ok {
			date = d
		}

		slots = append(slots, domain.AppointmentSlot{
			Date:    date,
			Time:    clock,
			RawText: raw,
		})
	})

	return slots
}
