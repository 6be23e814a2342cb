package enums

// AuditAction tags an audit_log row.
type AuditAction string

const (
	AuditActionCreateTransaction AuditAction = "CREATE_TRANSACTION"
	AuditActionDeposit           AuditAction = "DEPOSIT"
	AuditActionWithdrawal        AuditAction = "WITHDRAWAL"
	AuditActionCreateCategory    AuditAction = "CREATE_CATEGORY"
	AuditActionUpdatePrice       AuditAction = "UPDATE_PRICE"
	AuditActionCreateUser        AuditAction = "CREATE_USER"
	AuditActionDeactivateUser    AuditAction = "DEACTIVATE_USER"
	AuditActionLogin             AuditAction = "LOGIN"
)

var auditActions = newSet("audit action",
	AuditActionCreateTransaction,
	AuditActionDeposit,
	AuditActionWithdrawal,
	AuditActionCreateCategory,
	AuditActionUpdatePrice,
	AuditActionCreateUser,
	AuditActionDeactivateUser,
	AuditActionLogin,
)

func (a AuditAction) String() string { return string(a) }

func (a AuditAction) IsValid() bool { return auditActions.has(a) }

// AuditActions lists every action in declaration order.
func AuditActions() []AuditAction { return auditActions.all() }

func ParseAuditAction(value string) (AuditAction, error) { return auditActions.parse(value) }
