package explorer

import (
	"net/http"
	"time"

	"github.com/canopy-network/stakewatch/app/explorer/controller"
	"github.com/canopy-network/stakewatch/app/explorer/types"
	"github.com/canopy-network/stakewatch/pkg/utils"
	"go.uber.org/zap"
)

// NewServer builds the router and attaches the HTTP server to app.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3002")

	app.Server = &http.Server{
		Addr:              addr,
		Handler:           controller.WithCORS(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}
