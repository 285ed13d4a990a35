package analyzer

import (
	"github.com/ccollicutt/logsentry/pkg/parser"
	"github.com/ccollicutt/logsentry/pkg/security"
)

// Observer receives per-line events during a pass.
// Callbacks run on the session goroutine in line order.
type Observer interface {
	// LineParsed is called after a record has been accumulated.
	LineParsed(rec parser.RequestRecord)

	// LineRejected is called for each line that fails to parse.
	LineRejected(failure ParseFailure)

	// IncidentRaised is called for each detected incident.
	IncidentRaised(incident security.Incident)
}

type nopObserver struct{}

func (nopObserver) LineParsed(parser.RequestRecord) {}

func (nopObserver) LineRejected(ParseFailure) {}

func (nopObserver) IncidentRaised(security.Incident) {}
