package factory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearstack/clearflow/internal/storage/memory"
	"github.com/clearstack/clearflow/internal/storage/sqlite"
)

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), "memory://")
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &memory.Store{}, s)
}

func TestOpenSQLitePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cf.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &sqlite.Store{}, s)
}

func TestNormalizeMySQLDSN(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"root:secret@localhost:3306/clearflow", "root:secret@tcp(localhost:3306)/clearflow"},
		{"root:secret@localhost:3306/clearflow?parseTime=true", "root:secret@tcp(localhost:3306)/clearflow?parseTime=true"},
		{"root:secret@tcp(localhost:3306)/clearflow", "root:secret@tcp(localhost:3306)/clearflow"},
		{"root:p@ss@localhost/clearflow", "root:p@ss@tcp(localhost)/clearflow"},
		{"root:secret@localhost", "root:secret@tcp(localhost)/"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, normalizeMySQLDSN(c.in), c.in)
	}
}
