package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"anoa.com/homeworktracker/pkg/metrics"
	"github.com/sirupsen/logrus"
)

const (
	backendLocal = "local"
	tempPrefix   = ".upload-"
)

// LocalStore keeps attachments as flat files in one directory. Locators are
// absolute file paths, e.g. "/srv/app/uploads/3f1c..._essay.pdf".
type LocalStore struct {
	root   string
	logger *logrus.Logger
}

// NewLocalStore creates root if it does not exist.
func NewLocalStore(root string, logger *logrus.Logger) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve uploads dir %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads dir %s: %w", abs, err)
	}
	return &LocalStore{root: abs, logger: logger}, nil
}

func (s *LocalStore) Root() string {
	return s.root
}

// Store writes to a temp file first and renames it into place, so a
// half-written file never carries a real attachment name.
func (s *LocalStore) Store(ctx context.Context, r io.Reader, originalName string) (locator string, err error) {
	defer func() { metrics.RecordAttachment(backendLocal, "store", err) }()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.root, tempPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to sync attachment: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close attachment: %w", err)
	}

	dest := filepath.Join(s.root, GenerateName(originalName))
	if err = os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("failed to move attachment into place: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"locator": dest, "original_name": originalName}).Debug("attachment stored")
	return dest, nil
}

func (s *LocalStore) Release(ctx context.Context, locator string) {
	log := s.logger.WithField("locator", locator)

	path, ok := s.resolve(locator)
	if !ok {
		log.Warn("refusing to release attachment outside uploads dir")
		metrics.RecordAttachment(backendLocal, "release", errors.New("foreign locator"))
		return
	}

	err := os.Remove(path)
	switch {
	case err == nil:
		log.Debug("attachment released")
		metrics.RecordAttachment(backendLocal, "release", nil)
	case errors.Is(err, fs.ErrNotExist):
		log.Debug("attachment already absent")
		metrics.RecordAttachment(backendLocal, "release", nil)
	default:
		// Record deletion has already succeeded; the file becomes an orphan for
		// reconciliation to pick up.
		log.WithError(err).Warn("failed to release attachment")
		metrics.RecordAttachment(backendLocal, "release", err)
	}
}

func (s *LocalStore) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploads dir: %w", err)
	}

	objects := make([]Object, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		objects = append(objects, Object{
			Locator: filepath.Join(s.root, e.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	return objects, nil
}

// Key is the file name. Attachments are flat under root and names embed a
// UUID, so the name alone identifies the file.
func (s *LocalStore) Key(locator string) string {
	return filepath.Base(filepath.Clean(locator))
}

// resolve maps locator to a path under root. Relative locators issued before
// the root was made absolute resolve against the working directory.
func (s *LocalStore) resolve(locator string) (string, bool) {
	if locator == "" {
		return "", false
	}
	clean := filepath.Clean(locator)
	dir, err := filepath.Abs(filepath.Dir(clean))
	if err != nil || dir != s.root {
		return "", false
	}
	name := filepath.Base(clean)
	if name == "." || name == string(filepath.Separator) {
		return "", false
	}
	return filepath.Join(s.root, name), true
}
