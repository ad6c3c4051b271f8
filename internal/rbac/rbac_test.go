package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "assistant read", role: RoleAssistant, action: ActionRead, allow: true},
		{name: "assistant fill", role: RoleAssistant, action: ActionFillForm, allow: true},
		{name: "assistant questions", role: RoleAssistant, action: ActionManageQuestions, allow: false},
		{name: "assistant clients", role: RoleAssistant, action: ActionManageClients, allow: false},
		{name: "trainer questions", role: RoleTrainer, action: ActionManageQuestions, allow: true},
		{name: "trainer export", role: RoleTrainer, action: ActionExport, allow: true},
		{name: "trainer admin", role: RoleTrainer, action: ActionAdmin, allow: false},
		{name: "owner admin", role: RoleOwner, action: ActionAdmin, allow: true},
		{name: "unknown read", role: Role("ghost"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("owner") != RoleOwner {
		t.Fatal("owner should normalize to itself")
	}
	if Normalize("editor") != RoleAssistant {
		t.Fatal("unknown roles fall back to assistant")
	}
}
