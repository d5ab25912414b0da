package cryptobox

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/docunet-api/pkg/errors"
)

func testBox(t *testing.T) *Box {
	t.Helper()
	key := bytes.Repeat([]byte{0x42}, KeySize)
	box, err := New(key)
	require.NoError(t, err)
	return box
}

func TestNewRejectsWrongKeyLength(t *testing.T) {
	_, err := New([]byte("short"))
	require.Error(t, err)

	_, err = NewFromBase64(base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 16)))
	require.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	box := testBox(t)

	cases := [][]byte{
		nil,
		{},
		[]byte("a"),
		[]byte("personal data sheet for Juan Dela Cruz"),
		bytes.Repeat([]byte{0xff}, 16),   // exactly one block
		bytes.Repeat([]byte{0x00}, 4096), // multi block binary
	}
	for _, plain := range cases {
		blob, err := box.Encrypt(plain)
		require.NoError(t, err)

		got, err := box.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, append([]byte{}, plain...), append([]byte{}, got...))
	}
}

func TestEncryptRandomIV(t *testing.T) {
	box := testBox(t)
	plain := []byte("same input twice")

	first, err := box.Encrypt(plain)
	require.NoError(t, err)
	second, err := box.Encrypt(plain)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	a, err := box.Decrypt(first)
	require.NoError(t, err)
	b, err := box.Decrypt(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	box := testBox(t)

	cases := map[string]string{
		"not base64":        "%%%not-base64%%%",
		"too short":         base64.StdEncoding.EncodeToString([]byte("tiny")),
		"not block aligned": base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 16+7)),
	}
	for name, blob := range cases {
		_, err := box.Decrypt(blob)
		require.Error(t, err, name)
		assert.True(t, appErrors.Is(err, appErrors.ErrCrypto), name)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	box := testBox(t)
	blob, err := box.Encrypt([]byte("secret contents"))
	require.NoError(t, err)

	other, err := New(bytes.Repeat([]byte{0x24}, KeySize))
	require.NoError(t, err)

	// Wrong key produces garbage padding with overwhelming probability.
	if plain, err := other.Decrypt(blob); err == nil {
		assert.NotEqual(t, []byte("secret contents"), plain)
	} else {
		assert.True(t, appErrors.Is(err, appErrors.ErrCrypto))
	}
}
