// Package endpoints defines all HTTP API endpoints. Each endpoint also
// doubles as a CLI command calling the running server over HTTP.
package endpoints

import (
	"github.com/pagewright/scriptorium/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Book endpoints
		&IngestEndpoint{},
		&ListBooksEndpoint{},
		&GetBookEndpoint{},
		&GetEditingInfoEndpoint{},
		&SetEditingInfoEndpoint{},

		// Page read endpoints
		&ListPagesEndpoint{},
		&GetPageEndpoint{},
		&PageImageEndpoint{},

		// Page lifecycle endpoints
		&ClaimPageEndpoint{},
		&CompletePageEndpoint{},
		&UncompletePageEndpoint{},
		&ReleasePageEndpoint{},
		&SaveTextEndpoint{},

		// Principal endpoints
		&MeEndpoint{},

		// Admin endpoints
		&RecalcEndpoint{},
	}
}
