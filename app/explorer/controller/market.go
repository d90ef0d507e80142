package controller

import (
	"errors"
	"net/http"

	"github.com/canopy-network/stakewatch/app/explorer/types"
	"github.com/canopy-network/stakewatch/pkg/market"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
)

type watchRow struct {
	market.WatchItem
	Spinning bool `json:"spinning"`
	Selected bool `json:"selected"`
}

type watchListResponse struct {
	Sort        market.SortState `json:"sort"`
	Items       []watchRow       `json:"items"`
	AllSelected bool             `json:"allSelected"`
}

type selectionResponse struct {
	Selected    []string `json:"selected"`
	AllSelected bool     `json:"allSelected"`
}

// HandleMarketStatus returns the storage node connection state.
func (c *Controller) HandleMarketStatus(w http.ResponseWriter, _ *http.Request) {
	c.writeJSON(w, http.StatusOK, map[string]interface{}{
		"state": c.App.Connection(),
		"ready": c.App.IPFS.Ready(),
	})
}

// HandleWatchList returns the watch list ordered by the current sort state.
func (c *Controller) HandleWatchList(w http.ResponseWriter, _ *http.Request) {
	items := c.App.WatchList.Items()
	state := c.App.ListView.State()
	sorted := market.Recompute(items, state)

	rows := make([]watchRow, 0, len(sorted))
	for _, it := range sorted {
		rows = append(rows, watchRow{
			WatchItem: it,
			Spinning:  c.App.Refresher.IsSpinning(it.FileCid),
			Selected:  c.App.Selection.Contains(it.FileCid),
		})
	}
	c.writeJSON(w, http.StatusOK, watchListResponse{
		Sort:        state,
		Items:       rows,
		AllSelected: c.App.Selection.IsAllSelected(c.App.WatchList.Cids()),
	})
}

// HandleWatchAdd starts watching a storage deal.
func (c *Controller) HandleWatchAdd(w http.ResponseWriter, r *http.Request) {
	var item market.WatchItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		c.writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if err := c.App.WatchList.Add(item); err != nil {
		switch {
		case errors.Is(err, market.ErrDuplicateItem):
			c.writeError(w, http.StatusConflict, err.Error())
		default:
			c.writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	c.App.Hub.Publish(types.Message{Topic: types.TopicMarket, Type: "market.watch", Payload: map[string]interface{}{"added": item.FileCid}})
	c.writeJSON(w, http.StatusCreated, item)
}

// HandleWatchRemove stops watching one deal.
func (c *Controller) HandleWatchRemove(w http.ResponseWriter, r *http.Request) {
	fileCid := mux.Vars(r)["cid"]
	if c.App.RemoveWatchItems(fileCid) == 0 {
		c.writeError(w, http.StatusNotFound, market.ErrItemNotFound.Error())
		return
	}
	c.writeJSON(w, http.StatusOK, map[string]int{"removed": 1})
}

// HandleRefresh starts a global replica lookup for one deal.
// Responds 202 when started, 409 when a lookup for the deal is already running and 503
// when the storage node is not connected.
func (c *Controller) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	fileCid := mux.Vars(r)["cid"]
	if _, ok := c.App.WatchList.Get(fileCid); !ok {
		c.writeError(w, http.StatusNotFound, market.ErrItemNotFound.Error())
		return
	}

	result := c.App.Refresher.StartRefresh(r.Context(), fileCid)
	switch result {
	case market.RefreshStarted:
		c.writeJSON(w, http.StatusAccepted, map[string]string{"fileCid": fileCid, "result": result.String()})
	case market.RefreshInFlight:
		c.writeJSON(w, http.StatusConflict, map[string]string{"fileCid": fileCid, "result": result.String()})
	default:
		c.writeError(w, http.StatusServiceUnavailable, market.UnavailableMessage)
	}
}

// HandleSort toggles the sort state for a column.
func (c *Controller) HandleSort(w http.ResponseWriter, r *http.Request) {
	key, err := market.ParseSortKey(mux.Vars(r)["key"])
	if err != nil {
		c.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c.writeJSON(w, http.StatusOK, c.App.ListView.SetSort(key))
}

// HandleSelection returns the selected deals.
func (c *Controller) HandleSelection(w http.ResponseWriter, _ *http.Request) {
	c.writeSelection(w)
}

// HandleToggleAll selects every watched deal, or clears the selection when all are selected.
func (c *Controller) HandleToggleAll(w http.ResponseWriter, _ *http.Request) {
	c.App.Selection.ToggleAll(c.App.WatchList.Cids())
	c.writeSelection(w)
}

// HandleToggleOne flips one deal in or out of the selection.
func (c *Controller) HandleToggleOne(w http.ResponseWriter, r *http.Request) {
	fileCid := mux.Vars(r)["cid"]
	if _, ok := c.App.WatchList.Get(fileCid); !ok {
		c.writeError(w, http.StatusNotFound, market.ErrItemNotFound.Error())
		return
	}
	c.App.Selection.ToggleOne(fileCid)
	c.writeSelection(w)
}

// HandleRemoveSelected stops watching every selected deal.
func (c *Controller) HandleRemoveSelected(w http.ResponseWriter, _ *http.Request) {
	removed := c.App.RemoveWatchItems(c.App.Selection.Keys()...)
	c.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (c *Controller) writeSelection(w http.ResponseWriter) {
	c.writeJSON(w, http.StatusOK, selectionResponse{
		Selected:    c.App.Selection.Keys(),
		AllSelected: c.App.Selection.IsAllSelected(c.App.WatchList.Cids()),
	})
}
