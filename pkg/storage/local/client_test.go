package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vereinskasse/vereinskasse-backend/pkg/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), config.AttachmentsConfig{Dir: filepath.Join(t.TempDir(), "blobs")}, nil)
	require.NoError(t, err)
	return c
}

func TestPutOpenDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	require.NoError(t, c.Ping(ctx))

	key := ObjectKey(7, "Rechnung März.pdf")
	assert.True(t, strings.HasPrefix(key, "vouchers/7/"))
	assert.True(t, strings.HasSuffix(key, "-Rechnung_M_rz.pdf"), key)

	obj, err := c.Put(ctx, key, strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.EqualValues(t, 8, obj.Size)

	rc, err := c.Open(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))

	require.NoError(t, c.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(c.Root(), filepath.FromSlash(key)))
	assert.True(t, os.IsNotExist(err))

	_, err = c.Open(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, c.Delete(ctx, key), "deleting twice is fine")
}

func TestResolveRejectsEscapes(t *testing.T) {
	c := newTestClient(t)
	for _, key := range []string{"", "../outside", "/etc/passwd", "a/../../b"} {
		_, err := c.Put(context.Background(), key, strings.NewReader("x"))
		assert.Error(t, err, "key %q", key)
	}
}

func TestObjectKeyFallbackName(t *testing.T) {
	key := ObjectKey(1, "...")
	assert.True(t, strings.HasSuffix(key, "-file"), key)
}

func TestNewClientRequiresDir(t *testing.T) {
	_, err := NewClient(context.Background(), config.AttachmentsConfig{}, nil)
	assert.Error(t, err)
}
