package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter はルーターを生成する。
func NewRouter(accounts *AccountHandler, authorizations *AuthorizationHandler) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	// ルート定義
	r.Route("/v1/accounts", func(r chi.Router) {
		r.Post("/", accounts.Register)
		r.Get("/{address}", accounts.GetIdentity)
		r.Post("/{address}/rewrap", accounts.Rewrap)
	})
	r.Route("/v1/authorizations", func(r chi.Router) {
		r.Post("/", authorizations.Apply)
		r.Get("/{requester_address}/{work_id}", authorizations.GetStatus)
	})

	return r
}
