package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
)

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestContextFieldsFollowTheRequest(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Level: zerolog.DebugLevel, Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithActor(ctx, "actor-1", "committee")
	ctx = log.WithResidentID(ctx, "resident-9")
	log.Info(ctx, "movement.recorded")

	entry := lastEntry(t, buf)
	assert.Equal(t, "api", entry["service"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "actor-1", entry["actor_id"])
	assert.Equal(t, "committee", entry["actor_role"])
	assert.Equal(t, "resident-9", entry["resident_id"])
}

func TestErrorStackDependsOnCode(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf})

	log.Error(context.Background(), "withdraw.rejected", pkgerrors.New(pkgerrors.CodeInsufficientBalance, "not enough"))
	entry := lastEntry(t, buf)
	assert.Equal(t, "INSUFFICIENT_BALANCE", entry["error_code"])
	assert.NotContains(t, entry, "stack")

	log.Error(context.Background(), "db.failed", errors.New("connection reset"))
	entry = lastEntry(t, buf)
	assert.Contains(t, entry, "stack")
	assert.NotContains(t, entry, "error_code")
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "api", Output: buf, WarnStack: true}).Warn(context.Background(), "slow")
	assert.Contains(t, lastEntry(t, buf), "stack")

	buf.Reset()
	New(Options{ServiceName: "api", Output: buf}).Warn(context.Background(), "slow")
	assert.NotContains(t, lastEntry(t, buf), "stack")
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Level: ParseLevel("warn"), Output: buf})
	log.Info(context.Background(), "hidden")
	assert.Empty(t, buf.String())
}

func TestParseLevelDefaults(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
}
