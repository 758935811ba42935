package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/result-system/apiserver/config"
)

func TestLocalClientPutGetDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	client, err := NewLocalClient(dir, "/assets/")
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))

	require.NoError(t, client.Put(ctx, "avatars/a.png", strings.NewReader("png-bytes"), 9, "image/png"))

	rc, err := client.Get(ctx, "avatars/a.png")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))
	assert.Equal(t, "/assets/avatars/a.png", client.URL("avatars/a.png"))

	require.NoError(t, client.Delete(ctx, "avatars/a.png"))
	_, err = os.Stat(filepath.Join(dir, "avatars", "a.png"))
	assert.True(t, os.IsNotExist(err))

	// second delete is a no-op
	require.NoError(t, client.Delete(ctx, "avatars/a.png"))
}

func TestLocalClientKeysStayInsideRoot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	client, err := NewLocalClient(filepath.Join(dir, "root"), "/assets")
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))

	require.NoError(t, client.Put(ctx, "../../escape.txt", strings.NewReader("x"), 1, "text/plain"))
	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "root", "escape.txt"))
	assert.NoError(t, err)

	assert.ErrorIs(t, client.Put(ctx, "", strings.NewReader("x"), 1, ""), ErrInvalidKey)
}

func TestUploadKeepsExtensionOnly(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, config.StorageConfig{Backend: "local", LocalDir: t.TempDir(), PublicBaseURL: "http://localhost:8080/assets"})
	require.NoError(t, err)

	obj, err := s.Upload(ctx, "avatars", "../../Me.PNG", strings.NewReader("img"), 3, "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.Key, "avatars/"))
	assert.True(t, strings.HasSuffix(obj.Key, ".png"))
	assert.NotContains(t, obj.Key, "..")
	assert.Equal(t, "http://localhost:8080/assets/"+obj.Key, obj.URL)

	other, err := s.Upload(ctx, "avatars", "../../Me.PNG", strings.NewReader("img"), 3, "image/png")
	require.NoError(t, err)
	assert.NotEqual(t, obj.Key, other.Key)

	require.NoError(t, s.Delete(ctx, obj.Key))
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "s3"})
	assert.Error(t, err)
}
