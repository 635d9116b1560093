package admin

// Permission represents an admin permission
type Permission string

const (
	// Ledger
	PermViewLedger       Permission = "credits.view"
	PermGrantCredits     Permission = "credits.grant"
	PermReconcileCredits Permission = "credits.reconcile"

	// Seasonal events
	PermManageSeasons Permission = "seasons.manage"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleSuperAdmin: {
		PermViewLedger, PermGrantCredits, PermReconcileCredits,
		PermManageSeasons,
	},
	RoleAdmin: {
		PermViewLedger, PermGrantCredits,
		PermManageSeasons,
	},
	RoleSupport: {
		PermViewLedger,
	},
}
