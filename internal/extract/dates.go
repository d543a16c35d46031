package extract

import (
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/net/html"

	"github.com/terminwatch/terminwatch/internal/domain"
)

var (
	germanDateRe = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4})\b`)
	isoDateRe    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	clockTimeRe  = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
)

// ParseDate extracts a calendar date from text and normalizes it to ISO
// form. It understands the site's German format ("Dienstag, 18.11.2025")
// as well as dates that are already ISO.
func ParseDate(text string) (domain.SlotDate, bool) {
	if m := germanDateRe.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if day < 1 || day > 31 || month < 1 || month > 12 {
			return domain.DateUnresolved, false
		}
		return domain.SlotDate(fmt.Sprintf("%s-%02d-%02d", m[3], month, day)), true
	}
	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		return domain.SlotDate(m[0]), true
	}
	return domain.DateUnresolved, false
}

// ParseClockTime extracts a 24-hour clock token (HH:MM) from text.
func ParseClockTime(text string) (string, bool) {
	for _, m := range clockTimeRe.FindAllStringSubmatch(text, -1) {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			continue
		}
		return fmt.Sprintf("%02d:%02d", hour, minute), true
	}
	return "", false
}

// Tags considered structural containers for date correlation. A time token
// correlates only to headers inside its nearest enclosing container.
var containerTags = map[string]bool{
	"div": true, "section": true, "article": true, "main": true,
	"table": true, "ul": true, "ol": true, "form": true, "body": true,
}

// Tags that may act as date-bearing headers.
var headerTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"th": true, "legend": true, "caption": true, "dt": true,
}

// findContainer returns the nearest enclosing container element of n, or
// nil when none exists.
func findContainer(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && containerTags[p.Data] {
			return p
		}
	}
	return nil
}

// isDateHeader reports whether n is a header element whose own text carries
// a parseable date.
func isDateHeader(n *html.Node) (domain.SlotDate, bool) {
	if n.Type != html.ElementNode || !headerTags[n.Data] {
		return domain.DateUnresolved, false
	}
	return ParseDate(nodeText(n))
}

// nearestPrecedingDate scans the container in document order and returns
// the date of the last date-bearing header encountered before target. When
// no header precedes the target inside the container the date stays
// unresolved; the policy never guesses or defaults.
func nearestPrecedingDate(container, target *html.Node) domain.SlotDate {
	if container == nil {
		return domain.DateUnresolved
	}

	last := domain.DateUnresolved
	reached := false

	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n == target {
			reached = true
			return true
		}
		if d, ok := isDateHeader(n); ok {
			last = d
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(container)

	if !reached {
		return domain.DateUnresolved
	}
	return last
}

// nodeText collects the concatenated text content of a node subtree.
func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var out string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out += nodeText(c)
	}
	return out
}
