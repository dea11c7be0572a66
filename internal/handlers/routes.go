package handlers

import (
	"net/http"

	"ampa/internal/security"
)

// Router bundles the handlers served by the API
type Router struct {
	Middleware   *Middleware
	Auth         *AuthHandler
	Families     *FamilyHandler
	Users        *UserHandler
	Transfer     *TransferHandler
	Dashboard    *DashboardHandler
	LoginLimiter *security.RateLimiter
}

// Handler registers every route and wraps the mux with session resolution
// and request logging.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	login := rt.Auth.Login
	if rt.LoginLimiter != nil {
		login = rt.LoginLimiter.Middleware(login)
	}

	mux.HandleFunc("GET /healthz", Health)

	mux.HandleFunc("POST /auth/login", login)
	mux.HandleFunc("POST /auth/logout", rt.Auth.Logout)
	mux.HandleFunc("GET /auth/session", rt.Auth.Session)
	mux.HandleFunc("GET /auth/me", rt.Auth.Me)

	mux.HandleFunc("GET /families", rt.Families.List)
	mux.HandleFunc("POST /families", rt.Families.Create)
	mux.HandleFunc("GET /families/{id}", rt.Families.Get)
	mux.HandleFunc("PUT /families/{id}", rt.Families.Update)
	mux.HandleFunc("DELETE /families/{id}", rt.Families.Delete)
	mux.HandleFunc("GET /families/{id}/card", rt.Families.Card)
	mux.HandleFunc("POST /families/{id}/card/email", rt.Families.EmailCard)
	mux.HandleFunc("POST /families/{id}/summary", rt.Families.Summary)
	mux.HandleFunc("GET /cards/verify", rt.Families.VerifyCard)

	mux.HandleFunc("GET /dashboard", rt.Dashboard.Show)

	mux.HandleFunc("GET /users", rt.Users.List)
	mux.HandleFunc("POST /users", rt.Users.Create)
	mux.HandleFunc("PUT /users/{id}", rt.Users.Update)
	mux.HandleFunc("DELETE /users/{id}", rt.Users.Delete)

	mux.HandleFunc("GET /export/csv", rt.Transfer.ExportCSV)
	mux.HandleFunc("GET /export/xlsx", rt.Transfer.ExportXLSX)
	mux.HandleFunc("POST /import/preview", rt.Transfer.Preview)
	mux.HandleFunc("POST /import/csv", rt.Transfer.Commit)

	return Logging(rt.Middleware.Authenticate(mux))
}
