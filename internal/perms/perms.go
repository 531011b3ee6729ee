package perms

type Action string

const (
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionAdmin  Action = "admin"
)

// Permissions holds the four access lists of an annotation. An empty
// CanRead list means the annotation is publicly readable.
type Permissions struct {
	CanRead   []string `json:"can_read"`
	CanUpdate []string `json:"can_update"`
	CanDelete []string `json:"can_delete"`
	CanAdmin  []string `json:"can_admin"`
}

// Default grants the creator exclusive update/delete/admin rights and
// public read.
func Default(userID string) Permissions {
	return Permissions{
		CanRead:   []string{},
		CanUpdate: []string{userID},
		CanDelete: []string{userID},
		CanAdmin:  []string{userID},
	}
}

func Authorize(p Permissions, userID string, action Action) bool {
	switch action {
	case ActionRead:
		return len(p.CanRead) == 0 || contains(p.CanRead, userID)
	case ActionUpdate:
		return contains(p.CanUpdate, userID)
	case ActionDelete:
		return contains(p.CanDelete, userID)
	case ActionAdmin:
		return contains(p.CanAdmin, userID)
	default:
		return false
	}
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
