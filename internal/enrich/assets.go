package enrich

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// AssetStore downloads remote profile assets (logos, photos) into a local
// directory under content-addressed filenames. Resolution follows a
// last-good-wins policy: a failed download keeps whatever path was stored
// before, and a known-good asset is never replaced by a missing one.
type AssetStore struct {
	dir    string
	client *http.Client
	log    *zap.Logger
}

// NewAssetStore returns a store rooted at dir, creating it if needed.
func NewAssetStore(dir string) (*AssetStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "enrich: create asset dir %s", dir)
	}
	return &AssetStore{
		dir:    dir,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    zap.L().With(zap.String("component", "assets")),
	}, nil
}

// Resolve maps a remote asset URL to a local path. An empty URL or a failed
// download returns prior unchanged. A URL that already resolved before is
// served from disk without re-downloading.
func (a *AssetStore) Resolve(ctx context.Context, rawURL, prior string) string {
	if rawURL == "" {
		return prior
	}
	local := filepath.Join(a.dir, a.filename(rawURL))
	if _, err := os.Stat(local); err == nil {
		return local
	}
	if err := a.download(ctx, rawURL, local); err != nil {
		a.log.Warn("asset download failed, keeping prior",
			zap.String("url", rawURL),
			zap.String("prior", prior),
			zap.Error(err),
		)
		return prior
	}
	return local
}

// filename derives a stable content-addressed name from the source URL,
// keeping the URL's extension when it has one.
func (a *AssetStore) filename(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	name := hex.EncodeToString(sum[:])[:16]
	ext := strings.ToLower(path.Ext(strings.SplitN(rawURL, "?", 2)[0]))
	if len(ext) > 5 {
		ext = ""
	}
	return name + ext
}

func (a *AssetStore) download(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return eris.Wrap(err, "enrich: create asset request")
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "enrich: fetch asset")
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("enrich: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	// Write to a temp file first so a truncated download never lands at the
	// final path.
	tmp, err := os.CreateTemp(a.dir, ".asset-*")
	if err != nil {
		return eris.Wrap(err, "enrich: create temp asset")
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return eris.Wrap(err, "enrich: write asset")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return eris.Wrap(err, "enrich: close asset")
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return eris.Wrap(err, "enrich: place asset")
	}
	return nil
}
