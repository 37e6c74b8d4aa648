package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/vereinskasse/vereinskasse-backend/pkg/config"
	"github.com/vereinskasse/vereinskasse-backend/pkg/logger"
)

// ErrNotFound is returned when a key does not resolve to a stored object.
var ErrNotFound = errors.New("blob not found")

// Client stores attachment blobs below a root directory. Keys are slash
// separated and relative to the root.
type Client struct {
	root string
	logg *logger.Logger
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Object describes a stored blob.
type Object struct {
	Key  string
	Size int64
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func NewClient(ctx context.Context, cfg config.AttachmentsConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("attachments dir is required")
	}
	root, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve attachments dir: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create attachments dir: %w", err)
	}
	if logg == nil {
		logg = logger.Nop()
	}
	logg.Info(logg.WithField(ctx, "attachments_dir", root), "blob store ready")
	return &Client{root: root, logg: logg}, nil
}

// Root returns the absolute storage directory.
func (c *Client) Root() string {
	return c.root
}

// Ping verifies the root directory is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	info, err := os.Stat(c.root)
	if err != nil {
		return fmt.Errorf("stat attachments dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("attachments dir %s is not a directory", c.root)
	}
	return nil
}

// ObjectKey builds a fresh key for a voucher attachment: vouchers/<id>/<uuid>-<name>.
func ObjectKey(voucherID int64, fileName string) string {
	name := unsafeName.ReplaceAllString(filepath.Base(fileName), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("vouchers/%d/%s-%s", voucherID, uuid.NewString(), name)
}

// Put writes r under key and returns the stored size.
func (c *Client) Put(ctx context.Context, key string, r io.Reader) (*Object, error) {
	path, err := c.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create blob: %w", err)
	}
	size, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("write blob %s: %w", key, errors.Join(copyErr, closeErr))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("commit blob %s: %w", key, err)
	}

	c.logg.Debug(c.logg.WithFields(ctx, map[string]any{"key": key, "size": size}), "blob stored")
	return &Object{Key: key, Size: size}, nil
}

// Open returns a reader for key. Callers close it.
func (c *Client) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := c.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return f, err
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	path, err := c.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

func (c *Client) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(key)))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(c.root, clean), nil
}
