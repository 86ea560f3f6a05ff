package main

import (
	"github.com/spf13/cobra"

	"github.com/pagewright/scriptorium/internal/api"
	"github.com/pagewright/scriptorium/internal/auth"
	"github.com/pagewright/scriptorium/internal/server/endpoints"
)

var (
	serverURL      string
	principalID    string
	principalAdmin bool
	principalTerms bool
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Scriptorium server via HTTP.

These commands require a running server (scriptorium serve). In
production the identity headers are injected by the fronting identity
layer; here the --principal, --admin and --terms flags stand in for it.

Examples:
  scriptorium api health                                  # Check server health
  scriptorium api books                                   # List books
  scriptorium api pages claim my-book 3 --principal ada --terms
  scriptorium api admin recalc --scope all --principal ada --admin`,
}

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Page lifecycle commands",
}

var booksCmd = &cobra.Command{
	Use:   "books",
	Short: "Book management commands",
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Persistent flags so all subcommands inherit them
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)
	apiCmd.PersistentFlags().StringVar(
		&principalID, "principal", "", "Principal ID sent as identity header",
	)
	apiCmd.PersistentFlags().BoolVar(
		&principalAdmin, "admin", false, "Send the admin identity header",
	)
	apiCmd.PersistentFlags().BoolVar(
		&principalTerms, "terms", false, "Send the terms-accepted identity header",
	)

	// Forward identity flags as headers on every client request. This
	// shadows the root PersistentPreRun, so the output format is set
	// here as well.
	apiCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
		if principalID != "" {
			api.SetDefaultHeader(auth.HeaderPrincipalID, principalID)
		}
		if principalAdmin {
			api.SetDefaultHeader(auth.HeaderAdmin, "true")
		}
		if principalTerms {
			api.SetDefaultHeader(auth.HeaderTerms, "true")
		}
	}

	// Each subcommand group is an endpoint registry attached to its
	// parent command; the same endpoints serve the HTTP routes.
	groups := []struct {
		parent *cobra.Command
		eps    []api.Endpoint
	}{
		{apiCmd, []api.Endpoint{
			&endpoints.HealthEndpoint{},
			&endpoints.ReadyEndpoint{},
			&endpoints.StatusEndpoint{},
			&endpoints.MeEndpoint{},
		}},
		{booksCmd, []api.Endpoint{
			&endpoints.IngestEndpoint{},
			&endpoints.ListBooksEndpoint{},
			&endpoints.GetBookEndpoint{},
			&endpoints.ListPagesEndpoint{},
			&endpoints.GetEditingInfoEndpoint{},
			&endpoints.SetEditingInfoEndpoint{},
		}},
		{pagesCmd, []api.Endpoint{
			&endpoints.GetPageEndpoint{},
			&endpoints.ClaimPageEndpoint{},
			&endpoints.CompletePageEndpoint{},
			&endpoints.UncompletePageEndpoint{},
			&endpoints.ReleasePageEndpoint{},
			&endpoints.SaveTextEndpoint{},
		}},
		{adminCmd, []api.Endpoint{
			&endpoints.RecalcEndpoint{},
		}},
	}
	for _, g := range groups {
		reg := api.NewRegistry()
		for _, ep := range g.eps {
			reg.Register(ep)
		}
		reg.AddCommands(g.parent, getServerURL)
	}

	apiCmd.AddCommand(booksCmd)
	apiCmd.AddCommand(pagesCmd)
	apiCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(apiCmd)
}
