package modelstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func modelServer(t *testing.T, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/models/detector.onnx" {
			http.Error(w, "no such model", http.StatusNotFound)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestResolveLocalPath(t *testing.T) {
	p := filepath.Join(t.TempDir(), "m.onnx")
	require.NoError(t, os.WriteFile(p, []byte("weights"), 0o644))
	s := New(t.TempDir(), zaptest.NewLogger(t))

	got, err := s.Resolve(context.Background(), p, "")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	got, err = s.Resolve(context.Background(), "file://"+p, digest([]byte("weights")))
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = s.Resolve(context.Background(), p, digest([]byte("other")))
	require.ErrorIs(t, err, ErrChecksum)
}

func TestResolveLocalMissing(t *testing.T) {
	s := New(t.TempDir(), nil)
	_, err := s.Resolve(context.Background(), filepath.Join(t.TempDir(), "absent.onnx"), "")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolveHTTPDownloads(t *testing.T) {
	body := []byte("onnx-bytes")
	srv, hits := modelServer(t, body)
	cache := t.TempDir()
	s := New(cache, zaptest.NewLogger(t), WithHTTPClient(srv.Client()))

	got, err := s.Resolve(context.Background(), srv.URL+"/models/detector.onnx", "")
	require.NoError(t, err)
	assert.Equal(t, cache, filepath.Dir(got))
	assert.True(t, strings.HasSuffix(got, "-detector.onnx"), got)
	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, body, data)

	// Without a digest the model is fetched again.
	_, err = s.Resolve(context.Background(), srv.URL+"/models/detector.onnx", "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestResolveHTTPCacheHitWithDigest(t *testing.T) {
	body := []byte("onnx-bytes")
	srv, hits := modelServer(t, body)
	s := New(t.TempDir(), nil, WithHTTPClient(srv.Client()))
	ref := srv.URL + "/models/detector.onnx"

	first, err := s.Resolve(context.Background(), ref, digest(body))
	require.NoError(t, err)
	second, err := s.Resolve(context.Background(), ref, strings.ToUpper(digest(body)))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolveHTTPChecksumMismatchLeavesNoFile(t *testing.T) {
	srv, _ := modelServer(t, []byte("tampered"))
	cache := t.TempDir()
	s := New(cache, nil, WithHTTPClient(srv.Client()))

	_, err := s.Resolve(context.Background(), srv.URL+"/models/detector.onnx", digest([]byte("expected")))
	require.ErrorIs(t, err, ErrChecksum)

	entries, err := os.ReadDir(cache)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolveHTTPStatusError(t *testing.T) {
	srv, _ := modelServer(t, nil)
	s := New(t.TempDir(), nil, WithHTTPClient(srv.Client()))
	_, err := s.Resolve(context.Background(), srv.URL+"/models/missing.onnx", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestResolveRejectsBadReferences(t *testing.T) {
	s := New(t.TempDir(), nil)
	for _, ref := range []string{"", "  ", "ftp://host/model.onnx", "gs://bucket-only", "gs:///object"} {
		t.Run(ref, func(t *testing.T) {
			_, err := s.Resolve(context.Background(), ref, "")
			require.Error(t, err)
		})
	}
}

func TestResolveRemoteNeedsCacheDir(t *testing.T) {
	s := New("", nil)
	_, err := s.Resolve(context.Background(), "https://example.invalid/model.onnx", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache dir")
}

func TestSplitGCS(t *testing.T) {
	bucket, object, err := splitGCS("models/prod/detector.onnx")
	require.NoError(t, err)
	assert.Equal(t, "models", bucket)
	assert.Equal(t, "prod/detector.onnx", object)
}

func TestCacheName(t *testing.T) {
	a := cacheName("https://a.example/models/detector.onnx")
	assert.Equal(t, a, cacheName("https://a.example/models/detector.onnx"))
	assert.NotEqual(t, a, cacheName("https://b.example/models/detector.onnx"))
	assert.True(t, strings.HasSuffix(cacheName("gs://bucket/"), "-model"))
}
