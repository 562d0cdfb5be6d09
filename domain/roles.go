package domain

// Role is a per-board permission level. Creator and Co-creator hold full write
// access, Member may work tasks, Viewer is read-only.
type Role string

const (
	RoleCreator   Role = "Creator"
	RoleCoCreator Role = "Co-creator"
	RoleMember    Role = "Member"
	RoleViewer    Role = "Viewer"
)

// Action names a permission checked against a role.
type Action string

const (
	// ActionView covers reading board and task content.
	ActionView Action = "view"
	// ActionEditTasks covers task state changes: subtask status, completion
	// toggling and drag reordering.
	ActionEditTasks Action = "edit-tasks"
	// ActionManage covers board metadata, contributor management and task
	// create/edit/delete.
	ActionManage Action = "manage"
)

// Can reports whether the role permits the action.
func (r Role) Can(a Action) bool {
	switch r {
	case RoleCreator, RoleCoCreator:
		return true
	case RoleMember:
		return a == ActionView || a == ActionEditTasks
	case RoleViewer:
		return a == ActionView
	default:
		return false
	}
}

// NormalizeRole maps arbitrary input to a valid contributor role, defaulting
// to Viewer. Creator is never assignable through contributor input.
func NormalizeRole(role string) Role {
	switch Role(role) {
	case RoleCoCreator, RoleMember, RoleViewer:
		return Role(role)
	default:
		return RoleViewer
	}
}

// RoleOf resolves the caller's role on the board: the creator reference is
// checked first, then the contributor collection is scanned.
func (b *Board) RoleOf(userID string) (Role, bool) {
	if userID == "" {
		return "", false
	}
	if b.CreatorID == userID {
		return RoleCreator, true
	}
	for _, c := range b.Contributors {
		if c.UserID == userID {
			return c.Role, true
		}
	}
	return "", false
}

// requireRole gates a mutation: unknown users and insufficient roles both fail
// with Forbidden before any state is touched.
func requireRole(b *Board, userID string, action Action) error {
	role, ok := b.RoleOf(userID)
	if !ok || !role.Can(action) {
		return Forbidden("board", b.ID)
	}
	return nil
}
