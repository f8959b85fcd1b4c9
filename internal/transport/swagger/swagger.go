package swagger

import (
	"net/http"

	"github.com/go-chi/chi"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RegisterRoutes serves the static OpenAPI document and the swagger UI
// pointed at it.
func RegisterRoutes(r chi.Router) {
	r.Get("/openapi.yml", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		http.ServeFile(w, req, "api/openapi.yml")
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/openapi.yml"),
	))
}
