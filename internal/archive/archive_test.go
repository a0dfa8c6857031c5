package archive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/risu-extract/internal/model"
)

// TestBuildAndOpen verifies that built archives can be reopened and every
// entry read back byte-for-byte.
func TestBuildAndOpen(t *testing.T) {
	entries := []Entry{
		{Name: "card.json", Data: []byte(`{"spec":"chara_card_v3"}`)},
		{Name: "assets/icon/0.png", Data: []byte{0x89, 'P', 'N', 'G'}},
		{Name: "empty.bin", Data: nil},
	}

	data, err := Build(entries)
	require.NoError(t, err)

	r, err := Open(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/icon/0.png", "card.json", "empty.bin"}, r.Names())

	for _, e := range entries {
		got, ok, err := r.ReadEntry(e.Name)
		require.NoError(t, err)
		require.True(t, ok, "entry %s should exist", e.Name)
		assert.Equal(t, len(e.Data), len(got))
		if len(e.Data) > 0 {
			assert.Equal(t, e.Data, got)
		}
	}
}

// TestReadEntry_Missing checks that a missing entry is reported via ok,
// not as an error.
func TestReadEntry_Missing(t *testing.T) {
	data, err := Build([]Entry{{Name: "a.txt", Data: []byte("a")}})
	require.NoError(t, err)

	r, err := Open(data)
	require.NoError(t, err)

	got, ok, err := r.ReadEntry("b.txt")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.False(t, r.Has("b.txt"))
	assert.True(t, r.Has("a.txt"))
}

// TestOpen_Invalid verifies that non-archives map to ErrMalformedContainer.
func TestOpen_Invalid(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not a zip at all"), {0x89, 'P', 'N', 'G'}} {
		_, err := Open(data)
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrMalformedContainer))
	}
}
