package artifacts

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_SaveCode(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	key := Key{Section: 1, Offset: 42}

	require.NoError(t, s.SaveCode(key, []byte{1, 2, 3, 4}))

	content, err := os.ReadFile(s.path(key, ".bin"))
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, content)
}

func TestStore_SaveListing(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	key := Key{Section: 2, Offset: 7}

	require.NoError(t, s.SaveListing(key, "Acc(0)\nReturn(1)\n"))

	content, err := os.ReadFile(s.path(key, ".asm"))
	require.NoError(t, err)
	require.Equal(t, "Acc(0)\nReturn(1)\n", string(content))
}

func TestStore_distinctKeys(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	require.NoError(t, s.SaveCode(Key{Section: 0, Offset: 0}, []byte{0xaa}))
	require.NoError(t, s.SaveCode(Key{Section: 0, Offset: 1}, []byte{0xbb}))

	a, err := os.ReadFile(s.path(Key{Section: 0, Offset: 0}, ".bin"))
	require.NoError(t, err)
	b, err := os.ReadFile(s.path(Key{Section: 0, Offset: 1}, ".bin"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestStore_createsDirLazily(t *testing.T) {
	dir := t.TempDir()
	sub := dir + "/nested"
	s := NewStore(sub)

	_, err := os.Stat(sub)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, s.SaveCode(Key{Section: 3, Offset: 9}, []byte{1}))
	info, err := os.Stat(sub)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
