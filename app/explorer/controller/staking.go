package controller

import (
	"net/http"
	"strconv"

	"github.com/canopy-network/stakewatch/pkg/staking"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// tableResponse is a staking table. Ready is false until the first election snapshot
// arrived; Rows is then empty.
type tableResponse struct {
	Ready  bool          `json:"ready"`
	Filter string        `json:"filter"`
	Rows   []staking.Row `json:"rows"`
}

// HandleValidators returns the active validator table.
// Query parameters:
//   - filter: text matched against account id, index and names
//   - visibleOnly: "true" drops rows hidden by the filter
func (c *Controller) HandleValidators(w http.ResponseWriter, r *http.Request) {
	c.writeTable(w, r, c.App.Overview.Validators)
}

// HandleIntentions returns the next-up table: elected accounts followed by waiting ones.
func (c *Controller) HandleIntentions(w http.ResponseWriter, r *http.Request) {
	c.writeTable(w, r, c.App.Overview.Intentions)
}

func (c *Controller) writeTable(w http.ResponseWriter, r *http.Request, rowsFor func(string) ([]staking.Row, bool)) {
	filter := r.URL.Query().Get("filter")
	rows, ok := rowsFor(filter)
	if !ok {
		c.writeJSON(w, http.StatusOK, tableResponse{Filter: filter, Rows: []staking.Row{}})
		return
	}
	if r.URL.Query().Get("visibleOnly") == "true" {
		visible := rows[:0:0]
		for _, row := range rows {
			if row.Visible {
				visible = append(visible, row)
			}
		}
		rows = visible
	}
	c.writeJSON(w, http.StatusOK, tableResponse{Ready: true, Filter: filter, Rows: rows})
}

// HandlePartition returns the raw election partition.
func (c *Controller) HandlePartition(w http.ResponseWriter, _ *http.Request) {
	p, ok := c.App.Overview.Partition()
	if !ok {
		c.writeError(w, http.StatusServiceUnavailable, "election state not loaded")
		return
	}
	c.writeJSON(w, http.StatusOK, p)
}

// HandleNominators returns who nominated a validator and who backs its current exposure.
func (c *Controller) HandleNominators(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	nominatedBy, ok := c.App.Overview.NominatedBy(address)
	if !ok {
		c.writeError(w, http.StatusServiceUnavailable, "nominations not loaded")
		return
	}
	if nominatedBy == nil {
		nominatedBy = []staking.NominatorRank{}
	}
	backing := c.App.Overview.RowNominators(address)
	if backing == nil {
		backing = []string{}
	}
	c.writeJSON(w, http.StatusOK, map[string]interface{}{
		"address":     address,
		"nominatedBy": nominatedBy,
		"backing":     backing,
	})
}

// HandleFavorites lists the favorite accounts.
func (c *Controller) HandleFavorites(w http.ResponseWriter, r *http.Request) {
	list, err := c.App.Favorites.List(r.Context())
	if err != nil {
		c.App.Logger.Error("Failed to list favorites", zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "favorites unavailable")
		return
	}
	c.writeJSON(w, http.StatusOK, map[string][]string{"favorites": list})
}

// HandleToggleFavorite flips an account in or out of the favorites.
func (c *Controller) HandleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	added, err := c.App.ToggleFavorite(r.Context(), address)
	if err != nil {
		c.App.Logger.Error("Failed to toggle favorite", zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "favorites unavailable")
		return
	}
	c.writeJSON(w, http.StatusOK, map[string]interface{}{"accountId": address, "isFavorite": added})
}

type stashView struct {
	StashID           string `json:"stashId"`
	ControllerID      string `json:"controllerId"`
	IsStashValidating bool   `json:"isStashValidating"`
	IsStashNominating bool   `json:"isStashNominating"`
	Bonded            string `json:"bonded,omitempty"`
}

// HandleActions returns the own-controller stashes and the bonded total.
func (c *Controller) HandleActions(w http.ResponseWriter, _ *http.Request) {
	stashes, total := c.App.Overview.Stashes()
	views := make([]stashView, 0, len(stashes))
	for _, s := range stashes {
		v := stashView{
			StashID:           s.StashID,
			ControllerID:      s.ControllerID,
			IsStashValidating: s.IsStashValidating,
			IsStashNominating: s.IsStashNominating,
		}
		if s.Ledger != nil && s.Ledger.Total != nil {
			v.Bonded = s.Ledger.Total.Dec()
		}
		views = append(views, v)
	}
	c.writeJSON(w, http.StatusOK, map[string]interface{}{
		"stashes":     views,
		"bondedTotal": total.Dec(),
	})
}

// HandleCommission converts a whole percentage into on-chain commission parts.
func (c *Controller) HandleCommission(w http.ResponseWriter, r *http.Request) {
	percent, err := strconv.ParseUint(r.URL.Query().Get("percent"), 10, 64)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, "percent must be a non-negative integer")
		return
	}
	commission := staking.CommissionFromPercent(percent)
	c.writeJSON(w, http.StatusOK, map[string]interface{}{
		"parts":   commission.Parts,
		"display": commission.String(),
	})
}

// HandleControllerCheck validates a stash/controller pair.
func (c *Controller) HandleControllerCheck(w http.ResponseWriter, r *http.Request) {
	var in staking.ControllerCheck
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		c.writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if in.StashID == "" || in.ControllerID == "" {
		c.writeError(w, http.StatusBadRequest, "stashId and controllerId are required")
		return
	}
	c.writeJSON(w, http.StatusOK, staking.CheckController(in))
}

// HandleAddressBook lists the saved addresses.
func (c *Controller) HandleAddressBook(w http.ResponseWriter, _ *http.Request) {
	c.writeJSON(w, http.StatusOK, map[string]interface{}{"addresses": c.App.Book.Entries()})
}
