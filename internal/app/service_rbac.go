package app

import (
	"net/http"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/rbac"
)

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// authorize returns a 403 domain error when the session's role may not act.
func (s *Service) authorize(current Session, action rbac.Action) error {
	if s.Can(current.Role, action) {
		return nil
	}
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", map[string]any{"action": string(action)})
}
