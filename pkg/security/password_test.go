package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/banksampah-backend/pkg/config"
	"github.com/angelmondragon/banksampah-backend/pkg/security"
)

var fastCfg = config.PasswordConfig{
	ArgonMemoryKB:    8 * 1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("very-secure-password", fastCfg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"))

	ok, err := security.VerifyPassword("very-secure-password", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = security.VerifyPassword("bogus-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = security.HashPassword("", fastCfg)
	assert.Error(t, err)
}

func TestVerifyPasswordBadHash(t *testing.T) {
	for _, bad := range []string{
		"not-a-hash",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$",
	} {
		_, err := security.VerifyPassword("irrelevant", bad)
		assert.ErrorIs(t, err, security.ErrInvalidHash, bad)
	}
}

func TestNeedsRehash(t *testing.T) {
	hash, err := security.HashPassword("pw-123456", fastCfg)
	require.NoError(t, err)
	assert.False(t, security.NeedsRehash(hash, fastCfg))

	stronger := fastCfg
	stronger.ArgonTime = 2
	assert.True(t, security.NeedsRehash(hash, stronger))
	assert.True(t, security.NeedsRehash("garbage", fastCfg))
}

func TestParamsAreClamped(t *testing.T) {
	p := security.ParamsFromConfig(config.PasswordConfig{ArgonMemoryKB: 1, ArgonTime: 99, ArgonParallelism: 0})
	assert.Equal(t, uint32(8), p.Memory)
	assert.Equal(t, uint32(10), p.Time)
	assert.Equal(t, uint8(1), p.Parallelism)
	assert.Equal(t, uint32(8), p.SaltLen)
	assert.Equal(t, uint32(16), p.KeyLen)
}

func TestGenerateTempPassword(t *testing.T) {
	pw, err := security.GenerateTempPassword(12)
	require.NoError(t, err)
	assert.Len(t, pw, 12)
	assert.NotContainsf(t, pw, "0", "look-alike characters are excluded")
	assert.NotContains(t, pw, "O")
	assert.NotContains(t, pw, "l")

	_, err = security.GenerateTempPassword(0)
	assert.Error(t, err)
}
