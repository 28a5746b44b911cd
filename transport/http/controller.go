package http

import (
	"encoding/json"
	"net/http"
	"time"

	"chora/core/engine"
	"chora/core/pulse"
)

// Controller is the HTTP front end over an Engine and Pulse: one struct
// wrapping the domain collaborators, one method per route.
type Controller struct {
	Engine *engine.Engine
	Pulse  *pulse.Pulse
}

// NewController constructs a Controller.
func NewController(eng *engine.Engine, p *pulse.Pulse) *Controller {
	return &Controller{Engine: eng, Pulse: p}
}

type dispatchRequest struct {
	Intent         string         `json:"intent"`
	Inputs         map[string]any `json:"inputs"`
	Persona        string         `json:"persona"`
	DeadlineMillis int            `json:"deadline_millis"`
}

// Dispatch handles POST /dispatch.
func (c *Controller) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, engine.Result{OK: false, ErrorKind: "invalid_inputs", ErrorMessage: err.Error()})
		return
	}
	var deadline time.Duration
	if req.DeadlineMillis > 0 {
		deadline = time.Duration(req.DeadlineMillis) * time.Millisecond
	}
	res := c.Engine.Dispatch(r.Context(), req.Intent, req.Inputs, nil, req.Persona, deadline)
	status := http.StatusOK
	if !res.OK {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

// Capabilities handles GET /capabilities.
func (c *Controller) Capabilities(w http.ResponseWriter, r *http.Request) {
	caps, err := c.Engine.Capabilities()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"capabilities": caps})
}

// PulseStatus handles GET /pulse/status, returning the retained pulse
// history ring buffer.
func (c *Controller) PulseStatus(w http.ResponseWriter, r *http.Request) {
	if c.Pulse == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "history": c.Pulse.History(0)})
}

// PulseRun handles POST /pulse/run, forcing an immediate tick (preview mode
// available via ?preview=1).
func (c *Controller) PulseRun(w http.ResponseWriter, r *http.Request) {
	if c.Pulse == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "pulse is not configured"})
		return
	}
	preview := r.URL.Query().Get("preview") == "1"
	summary := c.Pulse.Tick(r.Context(), preview)
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
