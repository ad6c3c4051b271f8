package rbac

type Role string
type Action string

const (
	RoleAssistant Role = "assistant"
	RoleTrainer   Role = "trainer"
	RoleOwner     Role = "owner"
)

const (
	ActionRead            Action = "read"
	ActionFillForm        Action = "fill_form"
	ActionManageClients   Action = "manage_clients"
	ActionManageQuestions Action = "manage_questions"
	ActionExport          Action = "export"
	ActionAdmin           Action = "admin"
)

// Can reports whether role may perform action. Assistants fill in forms for
// existing clients; trainers own their clients and question bank.
func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleTrainer:
		return action != ActionAdmin
	case RoleAssistant:
		return action == ActionRead || action == ActionFillForm
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleAssistant, RoleTrainer, RoleOwner:
		return Role(role)
	default:
		return RoleAssistant
	}
}
