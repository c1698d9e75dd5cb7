package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageToken_RoundTrip(t *testing.T) {
	tok := PageToken{
		CreatedAt: time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC),
		ID:        "job_0c9e7a",
	}

	encoded := tok.Encode()
	require.NotEmpty(t, encoded)

	decoded, err := DecodePageToken(encoded)
	require.NoError(t, err)
	assert.True(t, tok.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, tok.ID, decoded.ID)
}

func TestPageToken_ZeroEncodesEmpty(t *testing.T) {
	assert.Equal(t, "", PageToken{}.Encode())

	decoded, err := DecodePageToken("")
	require.NoError(t, err)
	assert.True(t, decoded.IsZero())
}

func TestDecodePageToken_Malformed(t *testing.T) {
	_, err := DecodePageToken("%%%not-base64%%%")
	require.Error(t, err)

	_, err = DecodePageToken("bm90LWpzb24")
	require.Error(t, err)
}
