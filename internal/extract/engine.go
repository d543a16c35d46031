// Package extract classifies fetched result pages and extracts normalized
// appointment slots. The engine is a pure function of page content: no I/O,
// deterministic for identical input, and it never panics across its
// boundary — structural anomalies degrade to an unknown classification.
package extract

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/terminwatch/terminwatch/internal/domain"
)

// maxDiagnosticBytes bounds how much raw content an unknown classification
// retains for later strategy tuning.
const maxDiagnosticBytes = 16 * 1024

// Fragment is the extraction half of a CheckResult: the classification plus
// the slots that produced it.
type Fragment struct {
	Status       domain.CheckStatus
	Slots        []domain.AppointmentSlot
	StrategyUsed string
	Diagnostics  string
}

// Engine runs the negative-result check and the ordered strategy pipeline.
type Engine struct {
	phrases    []string
	strategies []Strategy
}

// NewEngine creates an engine with the default phrase set and strategies.
func NewEngine() *Engine {
	return &Engine{
		phrases:    DefaultNoAppointmentPhrases,
		strategies: DefaultStrategies(),
	}
}

// NewEngineWith creates an engine with a custom phrase set and strategy
// order. Both must be non-empty.
func NewEngineWith(phrases []string, strategies []Strategy) (*Engine, error) {
	if len(phrases) == 0 {
		return nil, fmt.Errorf("extract: phrase set must not be empty")
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("extract: strategy pipeline must not be empty")
	}
	return &Engine{phrases: phrases, strategies: strategies}, nil
}

// Extract classifies page content and extracts slots. The negative-result
// check runs first and short-circuits everything else: negative phrasing
// always wins over stray structural matches.
func (e *Engine) Extract(content string) (fragment Fragment) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("extraction panicked, degrading to unknown", "panic", r)
			fragment = Fragment{
				Status:      domain.CheckStatusUnknown,
				Diagnostics: truncate(fmt.Sprintf("panic: %v", r), maxDiagnosticBytes),
			}
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return Fragment{
			Status:      domain.CheckStatusUnknown,
			Diagnostics: truncate("unparseable content: "+err.Error(), maxDiagnosticBytes),
		}
	}

	lowered := strings.ToLower(NormalizeSpace(doc.Text()))
	for _, phrase := range e.phrases {
		if strings.Contains(lowered, strings.ToLower(phrase)) {
			return Fragment{Status: domain.CheckStatusNoAppointments}
		}
	}

	for _, strategy := range e.strategies {
		slots := strategy.Extract(doc)
		if len(slots) > 0 {
			return Fragment{
				Status:       domain.CheckStatusAppointmentsFound,
				Slots:        slots,
				StrategyUsed: strategy.Name(),
			}
		}
	}

	return Fragment{
		Status:      domain.CheckStatusUnknown,
		Diagnostics: truncate(content, maxDiagnosticBytes),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
