package controller

import (
	"net/http"
)

// HandleHealth reports the state of the process and its optional dependencies. Redis being
// disabled is healthy; Redis enabled but unreachable is not.
func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	redisState := "disabled"
	if c.App.RedisClient != nil {
		if err := c.App.RedisClient.Health(r.Context()); err != nil {
			c.writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "redis connection error"})
			return
		}
		redisState = "ok"
	}

	c.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"redis":  redisState,
		"ipfs":   string(c.App.Connection()),
	})
}
