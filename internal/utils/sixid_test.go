package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSixID_StringRoundtrip(t *testing.T) {
	id := NewSixID()
	s := id.String()
	assert.Len(t, s, 10)

	parsed, err := ParseSixID(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseSixID_Leniency(t *testing.T) {
	id := SixID{0xDE, 0xAD, 0xBE, 0xEF, 0x12, 0x34}
	s := id.String()

	// Hyphens, spaces and lowercase letters are tolerated on input.
	withHyphen := s[:5] + "-" + s[5:]
	parsed, err := ParseSixID(withHyphen)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	parsed, err = ParseSixID(" " + s + " ")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseSixID("too-short")
	assert.Error(t, err)
	_, err = ParseSixID("UUUUUUUUUU")
	assert.Error(t, err)

	// The empty string maps to the zero ID.
	parsed, err = ParseSixID("")
	require.NoError(t, err)
	assert.Equal(t, SixID{}, parsed)
}

func TestSixID_JSONRoundtrip(t *testing.T) {
	id := NewSixID()

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+id.String()+`"`, string(data))

	var decoded SixID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)

	assert.Error(t, json.Unmarshal([]byte(`"not base32!"`), &decoded))
}

func TestNewSixIDHook(t *testing.T) {
	fixed := SixID{1, 2, 3, 4, 5, 6}
	NewSixIDHook = func() (SixID, bool) { return fixed, true }
	defer func() { NewSixIDHook = nil }()

	assert.Equal(t, fixed, NewSixID())

	NewSixIDHook = func() (SixID, bool) { return SixID{}, false }
	a, b := NewSixID(), NewSixID()
	assert.NotEqual(t, a, b)
}
