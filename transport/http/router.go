package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// NewRouter builds the HTTP surface over ctrl: POST /dispatch,
// GET /capabilities, GET /pulse/status, POST /pulse/run.
func NewRouter(ctrl *Controller, log *logrus.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(logRequests(log))

	r.Post("/dispatch", ctrl.Dispatch)
	r.Get("/capabilities", ctrl.Capabilities)
	r.Get("/pulse/status", ctrl.PulseStatus)
	r.Post("/pulse/run", ctrl.PulseRun)
	return r
}
