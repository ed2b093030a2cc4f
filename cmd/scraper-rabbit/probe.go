// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package main

import (
	"net/http"

	"github.com/gorilla/mux"
)

type healthChecker interface {
	Healthy() bool
}

// newProbeRouter serves the readiness probe of the broker client.
func newProbeRouter(h healthChecker) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if !h.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable","service":"scraper-rabbit"}`))

			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"scraper-rabbit"}`))
	}).Methods(http.MethodGet)

	return r
}
