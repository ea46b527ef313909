package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffer_ReadAllDrains(t *testing.T) {
	b := NewBuffer(16)
	b.Write([]byte("hello"))

	assert.Equal(t, 5, b.Len())
	assert.Equal(t, []byte("hello"), b.ReadAll())
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.ReadAll())
}

func TestBuffer_OverwritesOldest(t *testing.T) {
	b := NewBuffer(8) // holds 7 bytes
	b.Write([]byte("abcdefghij"))

	assert.Equal(t, []byte("defghij"), b.ReadAll())
}

func TestBuffer_WrapAround(t *testing.T) {
	b := NewBuffer(8)
	b.Write([]byte("abcdef"))
	assert.Equal(t, []byte("abcdef"), b.ReadAll())

	b.Write([]byte("123456"))
	assert.Equal(t, []byte("123456"), b.ReadAll())
}

func TestBuffer_MinimumSize(t *testing.T) {
	b := NewBuffer(0)
	b.Write([]byte("xyz"))
	assert.Equal(t, []byte("z"), b.ReadAll())
}

func TestOptions_Merge(t *testing.T) {
	defaults := Options{
		Shell:      "/bin/sh",
		WorkingDir: "/tmp",
		Cols:       80,
		Rows:       24,
		BufferSize: 1024,
		Env:        map[string]string{"A": "1", "B": "2"},
	}

	got := Options{Cols: 120, Env: map[string]string{"B": "3"}}.merge(defaults)

	assert.Equal(t, "/bin/sh", got.Shell)
	assert.Equal(t, "/tmp", got.WorkingDir)
	assert.Equal(t, 120, got.Cols)
	assert.Equal(t, 24, got.Rows)
	assert.Equal(t, 1024, got.BufferSize)
	assert.Equal(t, map[string]string{"A": "1", "B": "3"}, got.Env)
}
