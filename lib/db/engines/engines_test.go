package engines

import (
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dStmt/lib/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	for _, impl := range Available {
		t.Run(string(impl), func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "data")
			backend, err := Factory(impl, dir)()
			require.NoError(t, err)

			require.NoError(t, backend.Commit([]db.Op{db.Put(db.ColMeta, []byte("k"), []byte("v"))}))
			assert.Equal(t, impl, backend.GetInfo().DbType)
			require.NoError(t, backend.Close())

			backend, err = Open(impl, dir)
			require.NoError(t, err)
			defer backend.Close()

			value, err := backend.Get(db.ColMeta, []byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), value)
		})
	}
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open("nope", t.TempDir())
	assert.Error(t, err)

	_, err = Open(db.ImplBolt, "")
	assert.Error(t, err)
}
