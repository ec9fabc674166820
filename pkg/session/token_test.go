package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucirr/dip-console/pkg/authz"
)

const testSecret = "0123456789abcdef0123456789abcdef" // 32 bytes

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(testSecret, "dip-console", time.Hour)
	require.NoError(t, err)
	return codec
}

func TestNewCodec_RejectsShortSecret(t *testing.T) {
	_, err := NewCodec("too-short", "dip-console", time.Hour)
	assert.ErrorContains(t, err, "at least 32 bytes")
}

func TestCodec_SignParse_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	token := codec.NewToken("sub-1")
	token.Username = "alice"
	token.Nickname = "Alice"
	token.Roles = authz.RoleSet{authz.RoleAdmin}
	token.UID = "42"
	token.AccessToken = "idp-access-token"

	signed, err := codec.Sign(token)
	require.NoError(t, err)

	parsed, err := codec.Parse(signed)
	require.NoError(t, err)

	assert.Equal(t, token.ID, parsed.ID)
	assert.Equal(t, "sub-1", parsed.Subject)
	assert.Equal(t, "alice", parsed.Username)
	assert.Equal(t, "Alice", parsed.Nickname)
	assert.Equal(t, authz.RoleSet{authz.RoleAdmin}, parsed.Roles)
	assert.Equal(t, "42", parsed.UID)
	assert.Equal(t, "idp-access-token", parsed.AccessToken)
}

func TestCodec_RolePresenceSurvivesRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	t.Run("never populated", func(t *testing.T) {
		token := codec.NewToken("sub-1")

		signed, err := codec.Sign(token)
		require.NoError(t, err)
		parsed, err := codec.Parse(signed)
		require.NoError(t, err)

		assert.False(t, parsed.HasRoles())
	})

	t.Run("populated but empty", func(t *testing.T) {
		token := codec.NewToken("sub-1")
		token.Roles = authz.RoleSet{}

		signed, err := codec.Sign(token)
		require.NoError(t, err)
		parsed, err := codec.Parse(signed)
		require.NoError(t, err)

		assert.True(t, parsed.HasRoles())
		assert.Empty(t, parsed.Roles)
	})
}

func TestCodec_Parse_RejectsTampering(t *testing.T) {
	codec := newTestCodec(t)
	signed, err := codec.Sign(codec.NewToken("sub-1"))
	require.NoError(t, err)

	// Flip a character in the payload segment.
	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	payload[0] ^= 0x01
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	_, err = codec.Parse(tampered)
	assert.Error(t, err)
}

func TestCodec_Parse_RejectsWrongSecret(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCodec("ffffffffffffffffffffffffffffffff", "dip-console", time.Hour)
	require.NoError(t, err)

	signed, err := codec.Sign(codec.NewToken("sub-1"))
	require.NoError(t, err)

	_, err = other.Parse(signed)
	assert.Error(t, err)
}

func TestCodec_Parse_RejectsExpired(t *testing.T) {
	codec := newTestCodec(t)

	token := codec.NewToken("sub-1")
	token.ExpiresAt = time.Now().Add(-time.Minute)

	signed, err := codec.Sign(token)
	require.NoError(t, err)

	_, err = codec.Parse(signed)
	assert.Error(t, err)
}

func TestCodec_Parse_RejectsWrongIssuer(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCodec(testSecret, "someone-else", time.Hour)
	require.NoError(t, err)

	signed, err := other.Sign(other.NewToken("sub-1"))
	require.NoError(t, err)

	_, err = codec.Parse(signed)
	assert.Error(t, err)
}
