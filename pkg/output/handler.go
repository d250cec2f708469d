package output

import (
	"fmt"
	"io"

	"github.com/agent-matrix/matrix-system/pkg/models"
)

// Handler defines the interface for output formatting
type Handler interface {
	DisplayHealth(service string, payload map[string]interface{}) error
	DisplayChecks(checks []models.HealthCheck) error
	DisplayServices(services []models.Service) error
	DisplayProposals(proposals []models.Proposal) error
	DisplayProposal(proposal *models.Proposal) error
	DisplayDecision(decision *models.Decision) error
	DisplayDecisions(decisions []*models.Decision) error
	DisplayEvents(events []models.Event) error
	DisplayPlan(plan *models.Plan) error
	DisplayMap(title string, values map[string]interface{}) error
	Format() string
}

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New returns the handler for format writing to out.
func New(format string, out io.Writer) (Handler, error) {
	switch format {
	case FormatText, "":
		return NewTableHandler(out), nil
	case FormatJSON:
		return NewJSONHandler(out), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want text or json)", format)
	}
}
