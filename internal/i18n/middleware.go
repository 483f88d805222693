package i18n

import (
	"net/http"

	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// Middleware injects a localizer into every request context. A lang query
// parameter or the Accept-Language header takes precedence over the server
// language.
func Middleware(lang string) func(http.Handler) http.Handler {
	serverLoc := NewLocalizer(lang)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := serverLoc
			query := r.URL.Query().Get("lang")
			accept := r.Header.Get("Accept-Language")
			if query != "" || accept != "" {
				loc = i18n.NewLocalizer(currentBundle(), query, accept, lang)
			}
			next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), loc)))
		})
	}
}
