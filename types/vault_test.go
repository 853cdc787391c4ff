package types

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("treasury"))
	assert.NoError(t, ValidateName(strings.Repeat("a", MaxNameLen)))
	assert.ErrorIs(t, ValidateName(""), ErrEmptyName)
	assert.ErrorIs(t, ValidateName(strings.Repeat("a", MaxNameLen+1)), ErrNameTooLong)
}

func TestVaultIDRoundTrip(t *testing.T) {
	id := NewVaultID()
	require.False(t, id.IsZero())

	parsed, err := ParseVaultID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseVaultID("not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidVault)
}

func TestPrincipalValidate(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	p := PrincipalFromPublicKey(pub)
	require.NoError(t, p.Validate())

	decoded, err := p.PublicKey()
	require.NoError(t, err)
	assert.True(t, pub.Equal(decoded))

	assert.ErrorIs(t, Principal("").Validate(), ErrInvalidPrincipal)
	assert.ErrorIs(t, Principal("0OIl").Validate(), ErrInvalidPrincipal) // not base58
	assert.ErrorIs(t, Principal("3mJr7AoUXx2Wqd").Validate(), ErrInvalidPrincipal)
}

func TestVaultPrincipalIsStable(t *testing.T) {
	v := &Vault{ID: NewVaultID()}
	other := NewVaultID()

	assert.Equal(t, VaultPrincipal(v.ID), v.Holding())
	assert.NotEqual(t, VaultPrincipal(other), v.Holding())
	assert.NoError(t, v.Holding().Validate())
}
