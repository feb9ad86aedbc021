package logging

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenOutput_RoundTrip(t *testing.T) {
	for _, name := range []string{"plain.csv", "packed.csv.zst"} {
		t.Run(name, func(t *testing.T) {
			// GIVEN an output in a directory that does not exist yet
			path := filepath.Join(t.TempDir(), "nested", name)

			// WHEN written, closed and read back
			out, err := OpenOutput(path)
			require.NoError(t, err)
			_, err = io.WriteString(out, "time,P\n0,1\n")
			require.NoError(t, err)
			require.NoError(t, out.Close())

			in, err := OpenInput(path)
			require.NoError(t, err)
			defer in.Close()
			got, err := io.ReadAll(in)
			require.NoError(t, err)

			// THEN the content survives
			assert.Equal(t, "time,P\n0,1\n", string(got))
		})
	}
}

func TestOpenOutput_CompressesZstPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv.zst")
	out, err := OpenOutput(path)
	require.NoError(t, err)
	_, err = io.WriteString(out, "time,P\n")
	require.NoError(t, err)
	require.NoError(t, out.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	// zstd frame magic number
	require.GreaterOrEqual(t, len(raw), 4)
	assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, raw[:4])
}

func TestOpenOutput_EmptyPath(t *testing.T) {
	_, err := OpenOutput("")
	assert.Error(t, err)
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "", formatFloat(nan()))
	assert.Equal(t, "0.25", formatFloat(0.25))
	assert.Equal(t, "3", formatFloat(3))
}
