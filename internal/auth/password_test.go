package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, ComparePassword(hash, "s3cret"))
	assert.ErrorIs(t, ComparePassword(hash, "wrong"), bcrypt.ErrMismatchedHashAndPassword)
}

func TestHashCost(t *testing.T) {
	hash, err := HashPassword("s3cret", bcrypt.MinCost+1)
	require.NoError(t, err)

	cost, err := HashCost(hash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)

	_, err = HashCost("plaintext")
	assert.Error(t, err)
}

func TestNeedsRehash(t *testing.T) {
	weak, err := HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)

	cases := []struct {
		name   string
		hash   string
		cost   int
		expect bool
	}{
		{name: "matching cost", hash: weak, cost: bcrypt.MinCost, expect: false},
		{name: "configured cost is higher", hash: weak, cost: bcrypt.MinCost + 2, expect: true},
		{name: "out of range cost means default", hash: weak, cost: 99, expect: true},
		{name: "not a hash", hash: "plaintext", cost: bcrypt.MinCost, expect: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, NeedsRehash(tc.hash, tc.cost))
		})
	}
}
