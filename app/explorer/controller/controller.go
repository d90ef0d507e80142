package controller

import (
	"net/http"

	"github.com/canopy-network/stakewatch/app/explorer/types"
	"github.com/canopy-network/stakewatch/pkg/utils"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
)

type Controller struct {
	App        *types.App
	AdminToken string
	AuthUser   string
	AuthHash   []byte
	JWTSecret  []byte
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	adminUser := utils.Env("ADMIN_USER", "admin")
	phash, _ := utils.HashOrRead(utils.Env("ADMIN_PASSWORD", "admin"))

	return &Controller{
		App:        app,
		AdminToken: utils.Env("ADMIN_TOKEN", "devtoken"),
		AuthUser:   adminUser,
		AuthHash:   phash,
		JWTSecret:  []byte(utils.Env("SESSION_SECRET", "change-me-please")),
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Echo the origin so cookies work from the dashboard host.
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodDelete+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/api/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	r.HandleFunc("/api/auth/login", c.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", c.HandleLogout).Methods(http.MethodPost)

	// Staking explorer
	r.HandleFunc("/api/staking/validators", c.HandleValidators).Methods(http.MethodGet)
	r.HandleFunc("/api/staking/intentions", c.HandleIntentions).Methods(http.MethodGet)
	r.HandleFunc("/api/staking/partition", c.HandlePartition).Methods(http.MethodGet)
	r.HandleFunc("/api/staking/nominators/{address}", c.HandleNominators).Methods(http.MethodGet)
	r.HandleFunc("/api/staking/favorites", c.HandleFavorites).Methods(http.MethodGet)
	r.Handle("/api/staking/favorites/{address}", c.RequireAuth(http.HandlerFunc(c.HandleToggleFavorite))).Methods(http.MethodPost)
	r.HandleFunc("/api/staking/actions", c.HandleActions).Methods(http.MethodGet)
	r.HandleFunc("/api/staking/commission", c.HandleCommission).Methods(http.MethodGet)
	r.HandleFunc("/api/staking/controller-check", c.HandleControllerCheck).Methods(http.MethodPost)
	r.HandleFunc("/api/addressbook", c.HandleAddressBook).Methods(http.MethodGet)

	// Storage market watch list
	r.HandleFunc("/api/market/status", c.HandleMarketStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/market/watch", c.HandleWatchList).Methods(http.MethodGet)
	r.Handle("/api/market/watch", c.RequireAuth(http.HandlerFunc(c.HandleWatchAdd))).Methods(http.MethodPost)
	r.Handle("/api/market/watch/{cid}", c.RequireAuth(http.HandlerFunc(c.HandleWatchRemove))).Methods(http.MethodDelete)
	r.Handle("/api/market/watch/{cid}/refresh", c.RequireAuth(http.HandlerFunc(c.HandleRefresh))).Methods(http.MethodPost)
	r.Handle("/api/market/sort/{key}", c.RequireAuth(http.HandlerFunc(c.HandleSort))).Methods(http.MethodPost)
	r.HandleFunc("/api/market/selection", c.HandleSelection).Methods(http.MethodGet)
	r.Handle("/api/market/selection", c.RequireAuth(http.HandlerFunc(c.HandleToggleAll))).Methods(http.MethodPost)
	r.Handle("/api/market/selection/remove", c.RequireAuth(http.HandlerFunc(c.HandleRemoveSelected))).Methods(http.MethodPost)
	r.Handle("/api/market/selection/{cid}", c.RequireAuth(http.HandlerFunc(c.HandleToggleOne))).Methods(http.MethodPost)

	r.HandleFunc("/api/ws", c.HandleWebSocket).Methods(http.MethodGet)

	return r, nil
}

// writeJSON writes a JSON response
func (c *Controller) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (c *Controller) writeError(w http.ResponseWriter, statusCode int, message string) {
	c.writeJSON(w, statusCode, map[string]string{"error": message})
}
