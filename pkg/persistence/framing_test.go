package persistence_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/persistence"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := persistence.NewWriter(&buf)
	w.WriteMagicVersion(0xABCD, 1)
	w.WriteU64(42)
	w.WriteF32(3.25)
	w.WriteString("hello")
	require.NoError(t, w.Flush())

	r := persistence.NewReader(&buf)
	magic, version := r.ReadMagicVersion()
	assert.Equal(t, uint32(0xABCD), magic)
	assert.Equal(t, uint32(1), version)
	assert.Equal(t, uint64(42), r.ReadU64())
	assert.Equal(t, float32(3.25), r.ReadF32())
	assert.Equal(t, "hello", r.ReadString())
	assert.NoError(t, r.Err())
}

func TestCheckMagicVersionMismatch(t *testing.T) {
	err := persistence.CheckMagicVersion("Load", 1, 2, 1, 1)
	assert.Error(t, err)

	err = persistence.CheckMagicVersion("Load", 1, 1, 2, 1)
	assert.Error(t, err)

	err = persistence.CheckMagicVersion("Load", 1, 1, 1, 1)
	assert.NoError(t, err)
}

func TestAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	err := persistence.AtomicReplace(path, func(w io.Writer) error {
		_, err := w.Write([]byte("payload"))
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}
