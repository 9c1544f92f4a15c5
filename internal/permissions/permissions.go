// Package permissions is the single authorization boundary: every routed
// endpoint maps to one capability, and roles map to capability sets.
package permissions

import (
	"net/http"
	"sort"
	"strings"

	"github.com/router-for-me/IPGenerator/internal/models"
)

// Capability names an action a role may perform.
type Capability string

const (
	CapSession       Capability = "session"
	CapAllocate      Capability = "allocate"
	CapClaim         Capability = "claim"
	CapProxiesManage Capability = "proxies.manage"
	CapReportsView   Capability = "reports.view"
	CapUsersManage   Capability = "users.manage"
	CapUploadsAudit  Capability = "uploads.audit"
	CapSettings      Capability = "settings.manage"
)

var roleCapabilities = map[string][]Capability{
	models.RoleUser: {
		CapSession, CapAllocate, CapClaim,
	},
	models.RoleManager: {
		CapSession, CapAllocate, CapClaim,
		CapProxiesManage, CapReportsView,
	},
	models.RoleAdmin: {
		CapSession, CapAllocate, CapClaim,
		CapProxiesManage, CapReportsView,
		CapUsersManage, CapUploadsAudit, CapSettings,
	},
}

// Allows reports whether role may perform capability. Unknown roles get nothing.
func Allows(role string, capability Capability) bool {
	for _, c := range roleCapabilities[strings.TrimSpace(role)] {
		if c == capability {
			return true
		}
	}
	return false
}

// CapabilitiesOf returns the sorted capability names of role.
func CapabilitiesOf(role string) []string {
	caps := roleCapabilities[strings.TrimSpace(role)]
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}

// Definition binds one route to the capability it requires.
type Definition struct {
	Key        string     `json:"key"`
	Method     string     `json:"method"`
	Path       string     `json:"path"`
	Capability Capability `json:"capability"`
	Label      string     `json:"label"`
}

// Key builds the lookup key for a method and gin route pattern.
func Key(method, path string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + strings.TrimSpace(path)
}

func def(method, path string, capability Capability, label string) Definition {
	return Definition{Key: Key(method, path), Method: method, Path: path, Capability: capability, Label: label}
}

var definitions = []Definition{
	def(http.MethodGet, "/v0/front/session", CapSession, "Restore session"),
	def(http.MethodPost, "/v0/front/logout", CapSession, "Sign out"),
	def(http.MethodGet, "/v0/front/capabilities", CapSession, "List own capabilities"),
	def(http.MethodGet, "/v0/front/usage/today", CapAllocate, "Today's usage"),
	def(http.MethodPost, "/v0/front/allocations", CapAllocate, "Allocate proxies"),
	def(http.MethodGet, "/v0/front/batch", CapAllocate, "Current batch"),
	def(http.MethodPost, "/v0/front/batch/claims/:id", CapClaim, "Claim one proxy"),
	def(http.MethodPost, "/v0/front/batch/claim", CapClaim, "Claim whole batch"),

	def(http.MethodPost, "/v0/admin/proxies/upload", CapProxiesManage, "Upload proxies"),
	def(http.MethodGet, "/v0/admin/proxies/count", CapProxiesManage, "Count proxies"),
	def(http.MethodDelete, "/v0/admin/proxies", CapProxiesManage, "Wipe proxy pool"),

	def(http.MethodGet, "/v0/admin/upload-history", CapUploadsAudit, "List upload history"),
	def(http.MethodDelete, "/v0/admin/upload-history/:id", CapUploadsAudit, "Delete upload history entry"),

	def(http.MethodGet, "/v0/admin/users", CapUsersManage, "List users"),
	def(http.MethodPost, "/v0/admin/users", CapUsersManage, "Create user"),
	def(http.MethodPut, "/v0/admin/users/:id", CapUsersManage, "Update user"),
	def(http.MethodPut, "/v0/admin/users/:id/daily-limit", CapUsersManage, "Update daily limit"),
	def(http.MethodPost, "/v0/admin/users/:id/toggle-active", CapUsersManage, "Toggle user active"),
	def(http.MethodPost, "/v0/admin/users/:id/regenerate-key", CapUsersManage, "Regenerate access key"),
	def(http.MethodDelete, "/v0/admin/users/:id", CapUsersManage, "Delete user"),

	def(http.MethodGet, "/v0/admin/settings", CapSettings, "List settings"),
	def(http.MethodPut, "/v0/admin/settings/:key", CapSettings, "Update setting"),

	def(http.MethodGet, "/v0/admin/status/users", CapReportsView, "Per-user usage"),
	def(http.MethodGet, "/v0/admin/status/system", CapReportsView, "System status"),

	def(http.MethodGet, "/v0/admin/permissions", CapUsersManage, "List capabilities"),
}

// Definitions returns a copy of every route definition.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// DefinitionMap indexes Definitions by Key.
func DefinitionMap() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, d := range definitions {
		out[d.Key] = d
	}
	return out
}
