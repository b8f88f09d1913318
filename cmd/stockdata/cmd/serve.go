package cmd

import (
	"github.com/gin-gonic/gin"
	"github.com/rustyeddy/stockdata/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve cached history over HTTP",
	Long: `Start the HTTP API on server.addr.

Routes:
  GET /healthz
  GET /v1/history/:symbol?interval=&start=&end=&attrib=&fetch=&dropna=
  GET /v1/snapshots?symbol=&interval=`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "override server.addr")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	h := server.NewHandler(a.manager, a.store, logger)
	srv := server.New(cfg.Server, h.Router())
	return server.Run(cmd.Context(), srv, logger)
}
