package extract

// DefaultNoAppointmentPhrases is the localized phrase set the booking site
// uses to announce that nothing is bookable. A match on any of these wins
// over stray structural matches elsewhere on the page.
var DefaultNoAppointmentPhrases = []string{
	"Zurzeit sind keine Termine frei",
	"Zurzeit sind keine Termine verfügbar",
	"Leider sind derzeit keine Termine verfügbar",
	"Es sind zurzeit keine Termine verfügbar",
	"Aktuell sind keine Termine buchbar",
	"Keine Zeiten verfügbar",
	"keine freien Termine",
}
