package rbac

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tradewind-bank/tradewind/internal/platform/httpx"
	"github.com/tradewind-bank/tradewind/internal/shared"
)

// PermissionsHandler exposes the static permission catalog for the
// settings/permission-matrix screens.
type PermissionsHandler struct {
	rbac Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.PermSettingsView))
		r.Get("/permissions", h.listPermissions)
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{role}/permissions", h.rolePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Get("/me/permissions", h.myPermissions)
	})
}

type permissionGroup struct {
	Domain string   `json:"domain"`
	Tokens []string `json:"tokens"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	// Group by the domain half of "domain:verb" for display only; the engine
	// itself treats tokens as opaque.
	grouped := make(map[string][]string)
	for _, token := range AllPermissions() {
		domain := token
		if idx := strings.IndexByte(token, ':'); idx > 0 {
			domain = token[:idx]
		}
		grouped[domain] = append(grouped[domain], token)
	}
	domains := make([]string, 0, len(grouped))
	for d := range grouped {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	groups := make([]permissionGroup, 0, len(domains))
	for _, d := range domains {
		groups = append(groups, permissionGroup{Domain: d, Tokens: grouped[d]})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (h *PermissionsHandler) listRoles(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": AllRoles()})
}

func (h *PermissionsHandler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	role, err := ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Unknown role", err.Error())
		return
	}
	set, err := PermissionsForRole(role)
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Catalog lookup failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role": role, "permissions": set.List()})
}

func (h *PermissionsHandler) myPermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.ErrActorMissing.Error())
		return
	}
	set, err := EffectivePermissions(actor)
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Permission resolution failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"actor":       actor.ID,
		"role":        actor.Role,
		"permissions": set.List(),
	})
}
