package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testHasher() *Hasher {
	return NewHasher(bcrypt.MinCost, 8)
}

func TestNormalize(t *testing.T) {
	require.Equal(t, "", Normalize(""))

	// sha256("abc")
	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Normalize("abc"))

	long := strings.Repeat("x", 10_000)
	require.Len(t, Normalize(long), 64)
	require.Len(t, Normalize("пароль-ünïcode-密码"), 64)
	require.Equal(t, Normalize(long), Normalize(long))
}

func TestHashAndVerify(t *testing.T) {
	h := testHasher()

	for _, pw := range []string{"Secret123!", strings.Repeat("long", 100), "密码密码密码密码"} {
		hash, err := h.Hash(pw)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(hash, "$2"), "bcrypt encoding expected")
		require.True(t, h.Verify(pw, hash))
		require.False(t, h.Verify(pw+"x", hash))
	}
}

func TestVerify_DistinguishesBeyond72Bytes(t *testing.T) {
	h := testHasher()

	// Plain bcrypt truncates at 72 bytes, so these two would collide.
	prefix := strings.Repeat("a", 80)
	hash, err := h.Hash(prefix + "1")
	require.NoError(t, err)
	require.True(t, h.Verify(prefix+"1", hash))
	require.False(t, h.Verify(prefix+"2", hash))
}

func TestVerify_MalformedHash(t *testing.T) {
	h := testHasher()

	require.False(t, h.Verify("whatever", ""))
	require.False(t, h.Verify("whatever", "not-a-hash"))
	require.False(t, h.Verify("whatever", "$2a$04$short"))
}

func TestVerify_RejectsUnnormalizedHash(t *testing.T) {
	h := testHasher()

	raw, err := bcrypt.GenerateFromPassword([]byte("Secret123!"), bcrypt.MinCost)
	require.NoError(t, err)
	require.False(t, h.Verify("Secret123!", string(raw)))
}

func TestValidate(t *testing.T) {
	h := testHasher()

	require.ErrorIs(t, h.Validate(""), ErrPasswordEmpty)
	require.ErrorIs(t, h.Validate("short"), ErrPasswordTooShort)
	require.NoError(t, h.Validate("Secret123!"))
	require.NoError(t, h.Validate(strings.Repeat("z", 500)))
}

func TestNewHasher_ClampsCost(t *testing.T) {
	require.Equal(t, bcrypt.DefaultCost, NewHasher(0, 8).Cost())
	require.Equal(t, bcrypt.MinCost, NewHasher(1, 8).Cost())
	require.Equal(t, bcrypt.MaxCost, NewHasher(99, 8).Cost())
}

func TestVerifyNothing(t *testing.T) {
	h := testHasher()
	h.VerifyNothing("anything")
	h.VerifyNothing("")
}
