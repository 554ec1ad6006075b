package provision

import "github.com/gosom/store-provisioner/models"

// Action is a provisioning action subject to authorization.
type Action string

const (
	ActionCreateAdmin   Action = "create_admin"
	ActionCreateOwner   Action = "create_owner"
	ActionCreateManager Action = "create_manager"
)

// Authorize decides whether a caller with the given stored role and owned
// stores may perform action against targetStoreIDs. Pure function, no side
// effects. A denial applies to the whole request; target lists are never
// filtered down to the permitted subset.
func Authorize(callerRole models.Role, callerOwnedStores []string, action Action, targetStoreIDs []string) error {
	switch action {
	case ActionCreateAdmin:
		if callerRole != models.RoleAdmin {
			return newError(KindPermissionDenied, "only admins can create admin accounts")
		}
	case ActionCreateOwner:
		if callerRole != models.RoleAdmin {
			return newError(KindPermissionDenied, "only admins can create store owner accounts")
		}
	case ActionCreateManager:
		if callerRole != models.RoleAdmin && callerRole != models.RoleOwner {
			return newError(KindPermissionDenied, "only admins or store owners can create manager accounts")
		}

		if callerRole == models.RoleOwner {
			owned := make(map[string]struct{}, len(callerOwnedStores))
			for _, id := range callerOwnedStores {
				owned[id] = struct{}{}
			}

			for _, id := range targetStoreIDs {
				if _, ok := owned[id]; !ok {
					return newError(KindPermissionDenied, "store owners can only create managers for stores they own")
				}
			}
		}
	default:
		return newError(KindPermissionDenied, "unknown action")
	}

	return nil
}
