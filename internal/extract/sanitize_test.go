package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSelection(t *testing.T, page, selector string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc.Find(selector)
}

func TestLabel_StripsTooltipText(t *testing.T) {
	page := `<html><body>
		<div id="row">
			<span>Abholung Führerschein</span>
			<span class="tooltip">Hinweis: Bitte Personalausweis mitbringen und rechtzeitig erscheinen.</span>
		</div>
	</body></html>`

	label := Label(parseSelection(t, page, "#row"))

	assert.Equal(t, "Abholung Führerschein", label)
}

func TestLabel_PrefersMinimalLabelingElement(t *testing.T) {
	page := `<html><body>
		<li id="row"><label>Umschreibung ausländischer Führerschein</label> <input type="number" value="1"> weitere Angaben</li>
	</body></html>`

	label := Label(parseSelection(t, page, "#row"))

	assert.Equal(t, "Umschreibung ausländischer Führerschein", label)
}

func TestLabel_FallsBackToBlockText(t *testing.T) {
	page := `<html><body><div id="row">  Abholung   Führerschein  </div></body></html>`

	label := Label(parseSelection(t, page, "#row"))

	assert.Equal(t, "Abholung Führerschein", label)
}

func TestLabel_Empty(t *testing.T) {
	assert.Equal(t, "", Label(nil))
}

func TestNormalizeSpace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeSpace("  a \n\t b   c "))
	assert.Equal(t, "", NormalizeSpace("   "))
}
