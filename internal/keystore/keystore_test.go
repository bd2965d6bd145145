package keystore

import (
	"math/big"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/securemsg/internal/keys"
)

func sampleKey() keys.Key {
	return keys.Key{Exponent: big.NewInt(keys.PublicExponent), Modulus: big.NewInt(3233)}
}

func TestSaveAndLoadKeyPair(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "keys"))
	require.NoError(t, err)
	assert.False(t, s.HasKeyPair())

	pub, err := NewPublicKey(sampleKey())
	require.NoError(t, err)
	priv, err := NewPrivateKey(keys.Key{Exponent: big.NewInt(2753), Modulus: big.NewInt(3233)})
	require.NoError(t, err)

	require.NoError(t, s.SaveKeyPair(pub, priv))
	assert.True(t, s.HasKeyPair())

	gotPub, err := s.LoadPublic()
	require.NoError(t, err)
	assert.Nil(t, gotPub.Email)
	k, err := gotPub.Decode()
	require.NoError(t, err)
	assert.True(t, k.Equal(sampleKey()))

	gotPriv, err := s.LoadPrivate()
	require.NoError(t, err)
	assert.Empty(t, gotPriv.Email)
	assert.Equal(t, priv.Key, gotPriv.Key)
}

func TestFileFormat(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	pub, err := NewPublicKey(sampleKey())
	require.NoError(t, err)
	priv, err := NewPrivateKey(sampleKey())
	require.NoError(t, err)
	require.NoError(t, s.SaveKeyPair(pub, priv))

	raw, err := os.ReadFile(filepath.Join(dir, PublicFile))
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":null,"key":"`+pub.Key+`"}`, string(raw))

	raw, err = os.ReadFile(filepath.Join(dir, PrivateFile))
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":[],"key":"`+priv.Key+`"}`, string(raw))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dir, PrivateFile))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp files must not be left behind")
}

func TestPrivateKeyEmails(t *testing.T) {
	var priv PrivateKey
	assert.True(t, priv.AddEmail("alice@example.com"))
	assert.False(t, priv.AddEmail("ALICE@example.com"))
	assert.True(t, priv.AddEmail("bob@example.com"))
	assert.True(t, priv.HasEmail("Bob@Example.com"))
	assert.False(t, priv.HasEmail("carol@example.com"))
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, priv.Email)
}

func TestRecipientKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	email := "bob@example.com"
	_, err = s.LoadRecipient(email)
	assert.ErrorIs(t, err, ErrNotFound)

	pub, err := NewPublicKey(sampleKey())
	require.NoError(t, err)
	pub.Email = &email
	require.NoError(t, s.SaveRecipient(email, pub))
	assert.FileExists(t, filepath.Join(dir, "bob@example.com.key"))

	got, err := s.LoadRecipient(email)
	require.NoError(t, err)
	require.NotNil(t, got.Email)
	assert.Equal(t, email, *got.Email)
}

func TestRecipientRejectsUnsafeNames(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	for _, email := range []string{"", ".", "..", "../evil", `a\b`, "public", "private"} {
		err := s.SaveRecipient(email, PublicKey{})
		assert.ErrorIs(t, err, ErrInvalidEmail, email)
	}
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	_, err = s.LoadPublic()
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.LoadPrivate()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, PublicFile), []byte("{not json"), 0o644))
	_, err = s.LoadPublic()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestOverwriteKeepsSingleFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	priv, err := NewPrivateKey(sampleKey())
	require.NoError(t, err)
	require.NoError(t, s.SavePrivate(priv))
	priv.AddEmail("alice@example.com")
	require.NoError(t, s.SavePrivate(priv))

	got, err := s.LoadPrivate()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com"}, got.Email)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
