package server

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORSMiddleware allows browser clients from origins to call the API.
// An empty list allows every origin.
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Candidate-ID", "X-Interview-Token", "X-Request-ID"},
		ExposedHeaders: []string{"X-Interview-Token", "X-Request-ID"},
		MaxAge:         300,
	})
}
