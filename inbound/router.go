package inbound

import (
	"net/http"

	"github.com/gorilla/mux"
)

const HealthPath = "/healthz"

// NewRouter mounts the webhook handler on path for POST and a liveness probe
// on HealthPath.
func NewRouter(path string, handler http.Handler) *mux.Router {
	router := mux.NewRouter()
	router.Handle(path, handler).Methods(http.MethodPost)
	router.HandleFunc(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	return router
}
