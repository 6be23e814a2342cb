package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActorRole(t *testing.T) {
	role, err := ParseActorRole("committee")
	require.NoError(t, err)
	assert.Equal(t, ActorRoleCommittee, role)
	assert.True(t, role.IsStaff())
	assert.True(t, ActorRoleSuperAdmin.IsStaff())
	assert.False(t, ActorRoleResident.IsStaff())

	_, err = ParseActorRole("admin")
	assert.EqualError(t, err, `invalid actor role "admin"`)
	assert.False(t, ActorRole("").IsValid())
}

func TestMovementType(t *testing.T) {
	assert.Equal(t, int64(1), MovementTypeDeposit.Sign())
	assert.Equal(t, int64(-1), MovementTypeWithdrawal.Sign())
	_, err := ParseMovementType("transfer")
	assert.Error(t, err)
	mt, err := ParseMovementType("withdrawal")
	require.NoError(t, err)
	assert.Equal(t, MovementTypeWithdrawal, mt)
}

func TestAuditActionsRoundTrip(t *testing.T) {
	actions := AuditActions()
	require.Len(t, actions, 8)
	for _, action := range actions {
		parsed, err := ParseAuditAction(string(action))
		require.NoError(t, err)
		assert.Equal(t, action, parsed)
	}
	assert.False(t, AuditAction("LOGIN_AS_USER").IsValid())

	// callers get a copy
	actions[0] = "MUTATED"
	assert.Equal(t, AuditActionCreateTransaction, AuditActions()[0])
}

func TestOutboxEnums(t *testing.T) {
	for _, et := range OutboxEventTypes() {
		assert.True(t, et.IsValid(), et)
	}
	_, err := ParseOutboxEventType("resident_deleted")
	assert.Error(t, err)

	agg, err := ParseOutboxAggregateType("financial_movement")
	require.NoError(t, err)
	assert.Equal(t, AggregateMovement, agg)
	assert.False(t, OutboxAggregateType("user").IsValid())
}
