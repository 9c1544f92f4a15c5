package permissions

import (
	"testing"

	"github.com/router-for-me/IPGenerator/internal/models"
)

func TestCapabilityMatrix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		role string
		cap  Capability
		want bool
	}{
		{models.RoleUser, CapAllocate, true},
		{models.RoleUser, CapClaim, true},
		{models.RoleUser, CapProxiesManage, false},
		{models.RoleUser, CapReportsView, false},
		{models.RoleUser, CapUsersManage, false},
		{models.RoleManager, CapProxiesManage, true},
		{models.RoleManager, CapReportsView, true},
		{models.RoleManager, CapUsersManage, false},
		{models.RoleManager, CapSettings, false},
		{models.RoleManager, CapUploadsAudit, false},
		{models.RoleAdmin, CapUsersManage, true},
		{models.RoleAdmin, CapSettings, true},
		{models.RoleAdmin, CapUploadsAudit, true},
		{"root", CapSession, false},
		{"", CapAllocate, false},
	}
	for _, tc := range cases {
		if got := Allows(tc.role, tc.cap); got != tc.want {
			t.Fatalf("Allows(%q, %q): expected %v, got %v", tc.role, tc.cap, tc.want, got)
		}
	}
}

func TestDefinitionKeysAreUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for _, d := range Definitions() {
		if _, dup := seen[d.Key]; dup {
			t.Fatalf("duplicate definition %q", d.Key)
		}
		seen[d.Key] = struct{}{}
		if d.Capability == "" {
			t.Fatalf("definition %q has no capability", d.Key)
		}
	}
}

func TestDefinitionMapIncludesUserAdministration(t *testing.T) {
	t.Parallel()

	requiredKeys := []string{
		"GET /v0/admin/users",
		"POST /v0/admin/users/:id/regenerate-key",
		"DELETE /v0/admin/users/:id",
		"DELETE /v0/admin/proxies",
	}
	definitionMap := DefinitionMap()
	for _, key := range requiredKeys {
		key := key
		t.Run(key, func(t *testing.T) {
			t.Parallel()
			if _, ok := definitionMap[key]; !ok {
				t.Fatalf("DefinitionMap() missing permission key %q", key)
			}
		})
	}
}

func TestCapabilitiesOfIsSorted(t *testing.T) {
	t.Parallel()

	got := CapabilitiesOf(models.RoleUser)
	want := []string{"allocate", "claim", "session"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
