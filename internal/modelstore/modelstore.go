// Package modelstore turns model references into local files. Plain paths
// and file:// URLs are used in place; http(s):// and gs:// references are
// downloaded into a cache directory first.
package modelstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/straja-ai/aidetect/internal/redact"
)

// ErrChecksum means a model's SHA-256 differs from the expected digest.
var ErrChecksum = errors.New("model checksum mismatch")

const defaultTimeout = 5 * time.Minute

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient sets the client used for http(s) downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) {
		s.httpClient = c
	}
}

// WithStorageOptions passes client options to the GCS client, e.g.
// option.WithEndpoint for an emulator.
func WithStorageOptions(opts ...option.ClientOption) Option {
	return func(s *Store) {
		s.storageOpts = append(s.storageOpts, opts...)
	}
}

// Store resolves model references against one cache directory.
type Store struct {
	cacheDir    string
	httpClient  *http.Client
	storageOpts []option.ClientOption
	log         *zap.Logger
}

// New returns a Store that downloads into cacheDir.
func New(cacheDir string, log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		cacheDir:   cacheDir,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        log.Named("modelstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns a local path for ref. When expectedSHA256 is set, the
// file's digest must match it. A cached download is reused only when its
// digest matches; without a digest remote models are fetched again.
func (s *Store) Resolve(ctx context.Context, ref, expectedSHA256 string) (string, error) {
	ref = strings.TrimSpace(ref)
	expectedSHA256 = strings.ToLower(strings.TrimSpace(expectedSHA256))
	if ref == "" {
		return "", errors.New("model reference is empty")
	}

	scheme, rest, ok := strings.Cut(ref, "://")
	if !ok {
		return s.local(ref, expectedSHA256)
	}
	switch strings.ToLower(scheme) {
	case "file":
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("parse model url: %w", err)
		}
		return s.local(u.Path, expectedSHA256)
	case "http", "https":
		return s.download(ctx, ref, expectedSHA256, s.fetchHTTP)
	case "gs":
		if _, _, err := splitGCS(rest); err != nil {
			return "", err
		}
		return s.download(ctx, ref, expectedSHA256, s.fetchGCS)
	}
	return "", fmt.Errorf("unsupported model reference scheme %q", scheme)
}

func (s *Store) local(p, expectedSHA256 string) (string, error) {
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("model file: %w", err)
	}
	if expectedSHA256 != "" {
		if err := verifyFile(p, expectedSHA256); err != nil {
			return "", err
		}
	}
	return p, nil
}

type fetchFunc func(ctx context.Context, ref string) (io.ReadCloser, error)

func (s *Store) download(ctx context.Context, ref, expectedSHA256 string, fetch fetchFunc) (string, error) {
	if strings.TrimSpace(s.cacheDir) == "" {
		return "", errors.New("model cache dir is empty")
	}
	dest := filepath.Join(s.cacheDir, cacheName(ref))

	if expectedSHA256 != "" {
		if err := verifyFile(dest, expectedSHA256); err == nil {
			s.log.Debug("model cache hit", redact.URLField("ref", ref), zap.String("path", dest))
			return dest, nil
		}
	}

	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create model cache dir: %w", err)
	}

	s.log.Info("downloading model", redact.URLField("ref", ref), zap.String("destination", dest))
	startedAt := time.Now()

	body, err := fetch(ctx, ref)
	if err != nil {
		return "", err
	}
	defer body.Close()

	n, err := writeToFile(body, dest, expectedSHA256)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", redact.URL(ref), err)
	}

	s.log.Info("downloaded model",
		redact.URLField("ref", ref),
		zap.String("destination", dest),
		zap.Int64("bytes", n),
		zap.Duration("duration", time.Since(startedAt)),
	)
	return dest, nil
}

func (s *Store) fetchHTTP(ctx context.Context, ref string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("build model request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download model %s: %w", redact.URL(ref), err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("download model %s status: %s: %s", redact.URL(ref), resp.Status, strings.TrimSpace(string(errBody)))
	}
	return resp.Body, nil
}

func (s *Store) fetchGCS(ctx context.Context, ref string) (io.ReadCloser, error) {
	bucket, object, err := splitGCS(strings.TrimPrefix(ref, "gs://"))
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx, s.storageOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating GCS storage client: %w", err)
	}
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		client.Close()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("model %s: %w", redact.URL(ref), os.ErrNotExist)
		}
		return nil, fmt.Errorf("opening object from GCS %s: %w", redact.URL(ref), err)
	}
	return &gcsReader{Reader: r, client: client}, nil
}

// gcsReader closes the client together with the object reader.
type gcsReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *gcsReader) Close() error {
	return errors.Join(r.Reader.Close(), r.client.Close())
}

// splitGCS splits "bucket/object/path" into its bucket and object.
func splitGCS(rest string) (bucket, object string, err error) {
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs reference must be gs://bucket/object, got gs://%s", rest)
	}
	return bucket, object, nil
}

// cacheName is stable per reference and keeps the model's base name.
func cacheName(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	base := "model"
	if u, err := url.Parse(ref); err == nil {
		if b := path.Base(u.Path); b != "." && b != "/" && b != "" {
			base = b
		}
	}
	return hex.EncodeToString(sum[:8]) + "-" + base
}

// writeToFile copies src into a temp file next to destinationPath, checks the
// digest and renames the file into place.
func writeToFile(src io.Reader, destinationPath, expectedSHA256 string) (int64, error) {
	dir := filepath.Dir(destinationPath)
	tempFile, err := os.CreateTemp(dir, "download")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}

	shouldDeleteTempFile := true
	defer func() {
		if shouldDeleteTempFile {
			_ = os.Remove(tempFile.Name())
		}
	}()

	shouldCloseTempFile := true
	defer func() {
		if shouldCloseTempFile {
			_ = tempFile.Close()
		}
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tempFile, h), src)
	if err != nil {
		return n, fmt.Errorf("downloading from upstream source: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return n, fmt.Errorf("closing temp file: %w", err)
	}
	shouldCloseTempFile = false

	if err := checkSum(h, expectedSHA256); err != nil {
		return n, err
	}

	if err := os.Rename(tempFile.Name(), destinationPath); err != nil {
		return n, fmt.Errorf("renaming temp file: %w", err)
	}
	shouldDeleteTempFile = false

	return n, nil
}

func verifyFile(p, expectedSHA256 string) error {
	fh, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("open %s: %w", p, err)
	}
	defer fh.Close()
	h := sha256.New()
	if _, err := io.Copy(h, fh); err != nil {
		return fmt.Errorf("hash %s: %w", p, err)
	}
	return checkSum(h, expectedSHA256)
}

func checkSum(h hash.Hash, expected string) error {
	if expected == "" {
		return nil
	}
	sum := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(sum, expected) {
		return fmt.Errorf("%w: expected %s got %s", ErrChecksum, expected, sum)
	}
	return nil
}
