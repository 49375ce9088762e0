package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r io.ReadCloser) string {
	t.Helper()
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

// TestLocalStorage 测试本地存储实现
func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStorage(LocalConfig{Path: root})
	require.NoError(t, err)

	t.Run("Put", func(t *testing.T) {
		info, err := store.Put(ctx, "acme/pdf/deck.pdf", strings.NewReader("%PDF-1.4"), -1, "")
		require.NoError(t, err)
		assert.Equal(t, "acme/pdf/deck.pdf", info.Key)
		assert.Equal(t, int64(8), info.Size)
		assert.Equal(t, "application/pdf", info.ContentType)
		assert.FileExists(t, filepath.Join(root, "acme", "pdf", "deck.pdf"))
		assert.True(t, strings.HasPrefix(info.URI, "file://"))
	})

	t.Run("Overwrite", func(t *testing.T) {
		_, err := store.Put(ctx, "acme/raw_acme.json", strings.NewReader(`[]`), 2, "application/json")
		require.NoError(t, err)
		_, err = store.Put(ctx, "acme/raw_acme.json", strings.NewReader(`[{"page":1}]`), -1, "application/json")
		require.NoError(t, err)

		r, err := store.Get(ctx, "acme/raw_acme.json")
		require.NoError(t, err)
		assert.Equal(t, `[{"page":1}]`, readAll(t, r))
	})

	t.Run("List", func(t *testing.T) {
		_, err := store.Put(ctx, "other/other.jsonl", strings.NewReader("{}\n"), -1, "")
		require.NoError(t, err)

		objects, err := store.List(ctx, "acme/")
		require.NoError(t, err)
		keys := make([]string, 0, len(objects))
		for _, o := range objects {
			keys = append(keys, o.Key)
		}
		assert.ElementsMatch(t, []string{"acme/pdf/deck.pdf", "acme/raw_acme.json"}, keys)

		all, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("ExistsAndDelete", func(t *testing.T) {
		exists, err := store.Exists(ctx, "acme/pdf/deck.pdf")
		require.NoError(t, err)
		assert.True(t, exists)

		require.NoError(t, store.Delete(ctx, "acme/pdf/deck.pdf"))

		exists, err = store.Exists(ctx, "acme/pdf/deck.pdf")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = store.Get(ctx, "acme/pdf/deck.pdf")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, "acme/pdf/deck.pdf"), ErrNotFound)
	})

	t.Run("KeysStayInsideRoot", func(t *testing.T) {
		info, err := store.Put(ctx, "../../escape.txt", bytes.NewBufferString("x"), 1, "")
		require.NoError(t, err)
		assert.Equal(t, "escape.txt", info.Key)
		assert.FileExists(t, filepath.Join(root, "escape.txt"))

		_, err = store.Put(ctx, "", bytes.NewBufferString("x"), 1, "")
		assert.Error(t, err)
	})
}

// TestNewStorage 测试工厂函数
func TestNewStorage(t *testing.T) {
	s, err := New(Config{Type: "local", Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = New(Config{Type: "ftp"})
	assert.Error(t, err)
}

// TestKeys 测试对象键工具函数
func TestKeys(t *testing.T) {
	assert.Equal(t, "acme/images/deck_page_1.png", JoinKey("acme", "images", "deck_page_1.png"))
	assert.Equal(t, "a/b", JoinKey("/a/", "b"))

	key := NewObjectKey("memos", "Report.PDF")
	assert.True(t, strings.HasPrefix(key, "memos/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))
	assert.NotEqual(t, key, NewObjectKey("memos", "Report.PDF"))

	assert.Equal(t, "application/x-ndjson", getMimeType("acme.jsonl"))
	assert.Equal(t, "image/png", getMimeType("x_page_2.png"))
}

// TestMinioStorage 需要MinIO服务，设置MINIO_ENDPOINT时运行
func TestMinioStorage(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set, skipping MinIO tests")
	}

	ctx := context.Background()
	store, err := NewMinioStorage(MinioConfig{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "pitch-test",
	})
	require.NoError(t, err)

	info, err := store.Put(ctx, "acme/acme.jsonl", strings.NewReader(`{"content":"x"}`+"\n"), -1, "")
	require.NoError(t, err)
	assert.Equal(t, "s3://pitch-test/acme/acme.jsonl", info.URI)

	r, err := store.Get(ctx, "acme/acme.jsonl")
	require.NoError(t, err)
	assert.Contains(t, readAll(t, r), "content")

	objects, err := store.List(ctx, "acme/")
	require.NoError(t, err)
	assert.NotEmpty(t, objects)

	require.NoError(t, store.Delete(ctx, "acme/acme.jsonl"))
	exists, err := store.Exists(ctx, "acme/acme.jsonl")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Get(ctx, "acme/acme.jsonl")
	assert.ErrorIs(t, err, ErrNotFound)
}
