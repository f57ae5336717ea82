package host

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lotas/tabtree/internal/mozlz4"
	"github.com/stretchr/testify/require"
)

func TestOfflineGetTree(t *testing.T) {
	profile := t.TempDir()
	dir := filepath.Join(profile, "sessionstore-backups")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	session := `{"windows":[{"selected":1,"tabs":[{"entries":[{"url":"https://a.example","title":"A"}],"index":1}]}]}`
	packed, err := mozlz4.Compress([]byte(session))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recovery.jsonlz4"), packed, 0o644))

	o := Offline{ProfileDir: profile}
	raw, err := o.GetTree(context.Background())
	require.NoError(t, err)
	require.Len(t, raw, 1)
	require.Equal(t, "A", raw[0].Title)
	require.True(t, raw[0].Active)

	require.ErrorIs(t, o.Collapse(context.Background(), 1), ErrReadOnly)
}
