package enums

// MovementType maps to the financial_movements.type column.
type MovementType string

const (
	MovementTypeDeposit    MovementType = "deposit"
	MovementTypeWithdrawal MovementType = "withdrawal"
)

var movementTypes = newSet("movement type", MovementTypeDeposit, MovementTypeWithdrawal)

func (m MovementType) String() string { return string(m) }

func (m MovementType) IsValid() bool { return movementTypes.has(m) }

// Sign returns +1 for deposits and -1 for withdrawals.
func (m MovementType) Sign() int64 {
	if m == MovementTypeWithdrawal {
		return -1
	}
	return 1
}

func ParseMovementType(value string) (MovementType, error) { return movementTypes.parse(value) }
