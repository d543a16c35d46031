package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors for embedded auxiliary text that must never leak into labels.
const auxiliarySelector = `.tooltip, .ui-tooltip, [role="tooltip"], .hint, .help-text, .sr-only, .visually-hidden, sup`

var whitespaceRe = regexp.MustCompile(`\s+`)

// Label returns the visible label of an element with embedded tooltip and
// help text removed. It prefers the minimal labeling descendant (a label,
// span or anchor holding the text) over the surrounding block.
func Label(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}

	// A dedicated labeling element inside the block wins over the block.
	inner := sel.Find("label, .label, .title, a, span").First()
	if inner.Length() > 0 {
		if text := cleanText(inner); text != "" {
			return text
		}
	}

	return cleanText(sel)
}

func cleanText(sel *goquery.Selection) string {
	cleaned := sel.Clone()
	cleaned.Find(auxiliarySelector).Remove()
	return NormalizeSpace(cleaned.Text())
}

// NormalizeSpace collapses runs of whitespace and trims the result.
func NormalizeSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
