package service

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerificationCode_FiveDigitRange(t *testing.T) {
	for i := 0; i < 5000; i++ {
		code := GenerateVerificationCode()
		require.Len(t, code, 5)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 10000)
		assert.LessOrEqual(t, n, 99999)
	}
}

func TestIdentityLocks_ReleasesEntries(t *testing.T) {
	locks := newIdentityLocks()
	unlockA := locks.lock(identityKey("ana", "beridze"))
	unlockB := locks.lock(identityKey("giorgi", "beridze"))
	assert.Equal(t, 2, locks.size())

	unlockA()
	unlockB()
	assert.Equal(t, 0, locks.size())
}

func TestIdentityKey_DoesNotCollide(t *testing.T) {
	assert.NotEqual(t, identityKey("ab", "c"), identityKey("a", "bc"))
}
