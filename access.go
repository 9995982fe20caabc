package carevault

// Action is an operation a principal may attempt. The names double as the audit
// log action column.
type Action string

const (
	ActionLogin         Action = "LOGIN"
	ActionLogout        Action = "LOGOUT"
	ActionAddPatient    Action = "ADD_PATIENT"
	ActionUpdatePatient Action = "UPDATE_PATIENT"
	ActionDeletePatient Action = "DELETE_PATIENT"
	ActionViewPatients  Action = "VIEW_PATIENTS"
	ActionViewDashboard Action = "VIEW_DASHBOARD"
	ActionViewLogs      Action = "VIEW_LOGS"
	ActionViewAnalytics Action = "VIEW_ANALYTICS"
	ActionExportData    Action = "EXPORT_DATA"

	// ActionDecryptError is audit-only: it records stored fields that failed to
	// decrypt while being disclosed.
	ActionDecryptError Action = "DECRYPT_ERROR"
)

// permissions lists what each non-admin role may do. Admins may do everything and
// unknown roles nothing.
var permissions = map[Role]map[Action]bool{
	RoleDoctor: {
		ActionViewPatients:  true,
		ActionViewDashboard: true,
	},
	RoleReceptionist: {
		ActionViewDashboard: true,
		ActionAddPatient:    true,
		ActionUpdatePatient: true,
	},
}

// Authorize returns nil when role may perform action and an error wrapping
// ErrAccessDenied otherwise.
func Authorize(role Role, action Action) error {
	if Can(role, action) {
		return nil
	}
	return NewAccessDeniedError(role, action)
}

// Can reports whether role may perform action. Logging in and out is always allowed.
func Can(role Role, action Action) bool {
	if action == ActionLogin || action == ActionLogout {
		return true
	}
	switch role {
	case RoleAdmin:
		return true
	case RoleDoctor, RoleReceptionist:
		return permissions[role][action]
	default:
		return false
	}
}
