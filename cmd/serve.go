package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/weft/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Start the live-reload preview server",
		Long: `Start a preview server that lists every template, renders each one
with its sibling data file or mock data, and reloads the browser when a
template or data file changes.

Routes:
  /                      template index
  /render/{name}         rendered template (?raw=1 for the bare fragment,
                         ?props=... to override data)
  /api/templates         templates as JSON
  /api/cache             plan cache statistics
  /health                health check
  /ws                    live-reload websocket

Examples:
  weft serve
  weft serve --port 3000 --host 0.0.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}

			srv, err := server.New(a.cfg, a.logger)
			if err != nil {
				return err
			}
			return srv.Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&host, "host", "localhost", "Host to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to serve on")

	return cmd
}
