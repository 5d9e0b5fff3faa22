package metrics

import (
	"encoding/json"
	"net/http"
)

// HealthStatus is the JSON body returned by HealthHandler and
// ReadinessHandler.
type HealthStatus struct {
	Status           string `json:"status"`
	RegisteredSockets int    `json:"registered_sockets"`
}

// SocketCounter reports the current registry size; netmgr.Manager
// satisfies this via its Len method.
type SocketCounter interface {
	Len() int
}

// HealthHandler always reports healthy once the process is up: liveness
// does not depend on having any sockets registered.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(HealthStatus{Status: "ok"})
	}
}

// ReadinessHandler reports ready only once the network manager has at
// least one registered socket — the listener, at minimum — so a load
// balancer does not route traffic before the server has bound its port.
func ReadinessHandler(counter SocketCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := counter.Len()
		status := HealthStatus{Status: "ready", RegisteredSockets: n}
		w.Header().Set("Content-Type", "application/json")
		if n == 0 {
			status.Status = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	}
}
