package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PhotoStorage is the file store for completion evidence photos. Files land
// under <root>/<bookingID>/ and are referenced by relative path everywhere
// else in the system.
type PhotoStorage struct {
	rootPath       string
	maxUploadBytes int64
	signingKey     []byte
	urlTTL         time.Duration
}

func NewPhotoStorage(rootPath string, maxUploadMB int64, signingKey string, urlTTL time.Duration) (*PhotoStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root %s: %w", rootPath, err)
	}

	return &PhotoStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
		signingKey:     []byte(signingKey),
		urlTTL:         urlTTL,
	}, nil
}

// Save writes an evidence photo and returns its relative path and size. The
// write goes to a temp file first so a half-written upload is never visible
// under its final name.
func (s *PhotoStorage) Save(ctx context.Context, bookingID, contractorID uuid.UUID, originalName string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	safeName := sanitizeFilename(originalName)
	fileName := fmt.Sprintf("%s_%d%s", contractorID.String(), time.Now().UnixNano(), filepath.Ext(safeName))

	bookingDir := filepath.Join(s.rootPath, bookingID.String())
	if err := os.MkdirAll(bookingDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("storage: create booking dir: %w", err)
	}

	targetPath := filepath.Join(bookingDir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", 0, fmt.Errorf("storage: create file: %w", err)
	}
	defer f.Close()

	limitedReader := io.LimitedReader{R: r, N: s.maxUploadBytes + 1}
	written, err := io.Copy(f, &limitedReader)
	if err != nil {
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: write file: %w", err)
	}

	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: file exceeds %d byte limit", s.maxUploadBytes)
	}

	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("storage: close file: %w", err)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		return "", 0, fmt.Errorf("storage: rename file: %w", err)
	}

	relative := filepath.Join(bookingID.String(), fileName)
	return relative, written, nil
}

// Open returns a reader for a stored photo.
func (s *PhotoStorage) Open(ctx context.Context, relativePath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(s.rootPath, filepath.Clean("/"+relativePath)))
}

// Delete removes a stored photo; a missing file is not an error.
func (s *PhotoStorage) Delete(ctx context.Context, relativePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(s.rootPath, filepath.Clean("/"+relativePath))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete file: %w", err)
	}
	return nil
}

// SignedURL returns a time-limited download URL for a stored photo. Evidence
// photos carry addresses and property detail, so raw paths are never exposed
// without a valid signature.
func (s *PhotoStorage) SignedURL(relativePath string, now time.Time) string {
	expires := now.Add(s.urlTTL).Unix()
	sig := s.sign(relativePath, expires)
	return fmt.Sprintf("/api/media/evidence/%s?expires=%d&sig=%s", relativePath, expires, sig)
}

// VerifySignature checks a signed URL's signature and expiry.
func (s *PhotoStorage) VerifySignature(relativePath string, expires int64, sig string, now time.Time) bool {
	if now.Unix() > expires {
		return false
	}
	expected := s.sign(relativePath, expires)
	return hmac.Equal([]byte(expected), []byte(sig))
}

func (s *PhotoStorage) sign(relativePath string, expires int64) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(relativePath))
	mac.Write([]byte{0})
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// sanitizeFilename strips anything that could escape the storage directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		name = "photo"
	}
	return name
}
