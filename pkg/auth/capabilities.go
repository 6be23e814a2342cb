package auth

import "github.com/angelmondragon/banksampah-backend/pkg/enums"

// Capability names an action the authorization layer may grant.
type Capability string

const (
	CapViewCatalog        Capability = "view_catalog"
	CapSetPrices          Capability = "set_prices"
	CapRecordTransactions Capability = "record_transactions"
	CapMoveFunds          Capability = "move_funds"
	CapViewBalances       Capability = "view_balances"
	CapViewLedger         Capability = "view_ledger"
	CapViewReports        Capability = "view_reports"
	CapViewAudit          Capability = "view_audit"
	CapReconcile          Capability = "reconcile"
	CapManageResidents    Capability = "manage_residents"
)

var roleCapabilities = map[enums.ActorRole]map[Capability]struct{}{
	enums.ActorRoleResident: set(
		CapViewCatalog,
		CapViewLedger,
		CapViewReports,
	),
	enums.ActorRoleCommittee: set(
		CapViewCatalog,
		CapRecordTransactions,
		CapMoveFunds,
		CapViewBalances,
		CapViewLedger,
		CapViewReports,
	),
	enums.ActorRoleSuperAdmin: set(
		CapViewCatalog,
		CapSetPrices,
		CapRecordTransactions,
		CapMoveFunds,
		CapViewBalances,
		CapViewLedger,
		CapViewReports,
		CapViewAudit,
		CapReconcile,
		CapManageResidents,
	),
}

func set(caps ...Capability) map[Capability]struct{} {
	out := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		out[c] = struct{}{}
	}
	return out
}

// Can reports whether role holds capability. Unknown roles hold nothing.
func Can(role enums.ActorRole, capability Capability) bool {
	caps, ok := roleCapabilities[role]
	if !ok {
		return false
	}
	_, ok = caps[capability]
	return ok
}
