package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/mfi-api/internal/domain/access"
	"github.com/Strob0t/mfi-api/internal/middleware"
	"github.com/Strob0t/mfi-api/internal/service"
)

// MountRoutes registers all API routes on the given chi router. Every /MFI
// route except the logo resolves the caller's permissions once and is then
// gated on its own (entity, action) pair. assets may be nil.
func MountRoutes(r chi.Router, h *Handlers, authz *service.AuthzService, assets http.Handler) {
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)

	if assets != nil {
		r.Handle("/assets/*", http.StripPrefix("/assets/", assets))
	}

	r.Route("/MFI", func(r chi.Router) {
		r.Get("/logo", h.MFILogo)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authorize(authz))

			mfiRoute := func(a access.Action) func(http.Handler) http.Handler {
				return middleware.Permit(access.EntityMFI, a)
			}
			branchRoute := func(a access.Action) func(http.Handler) http.Handler {
				return middleware.Permit(access.EntityBranch, a)
			}

			// MFI
			r.With(mfiRoute(access.ActionCreate)).Post("/create", h.CreateMFI)
			r.With(mfiRoute(access.ActionView)).Get("/all", h.ListMFIs)
			r.With(mfiRoute(access.ActionView)).Get("/paginate", h.PaginateMFIs)
			r.With(mfiRoute(access.ActionView)).Get("/{id}", h.GetMFI)
			r.With(mfiRoute(access.ActionUpdate)).Put("/{id}", h.UpdateMFI)
			r.With(mfiRoute(access.ActionUpdate)).Put("/{id}/status", h.UpdateMFIStatus)
			r.With(mfiRoute(access.ActionDelete)).Delete("/{id}", h.RemoveMFI)

			// Branches
			r.Route("/branches", func(r chi.Router) {
				r.With(branchRoute(access.ActionCreate)).Post("/create", h.CreateBranch)
				r.With(branchRoute(access.ActionView)).Get("/paginate", h.PaginateBranches)
				r.With(branchRoute(access.ActionView)).Get("/search", h.SearchBranches)
				r.With(branchRoute(access.ActionView)).Get("/{id}", h.GetBranch)
				r.With(branchRoute(access.ActionUpdate)).Put("/{id}", h.UpdateBranch)
				r.With(branchRoute(access.ActionUpdate)).Put("/{id}/status", h.UpdateBranchStatus)
				r.With(branchRoute(access.ActionDelete)).Delete("/{id}", h.RemoveBranch)
			})
		})
	})
}
