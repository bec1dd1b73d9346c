package credstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/kpxc/crypto"
	"github.com/opd-ai/kpxc/proxy"
)

const (
	formatPlain  uint16 = 1
	formatSealed uint16 = 2

	headerSize = 2
)

const (
	defaultDir  = "keepass-proxy-access"
	defaultFile = "keepass-proxy-access.dat"
)

// DefaultPath returns <UserConfigDir>/keepass-proxy-access/keepass-proxy-access.dat.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, defaultDir, defaultFile), nil
}

// FileStore reads and writes one credential file. A nil Sealer stores the
// record unencrypted.
type FileStore struct {
	Path   string
	Sealer *Sealer

	mu sync.Mutex
}

// Load reads the stored credentials. A missing file yields nil, nil.
func (s *FileStore) Load() (*proxy.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logrus.WithFields(logrus.Fields{
				"function": "FileStore.Load",
				"path":     s.Path,
			}).Debug("No stored credentials")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: file too short", ErrCorruptRecord)
	}

	body := data[headerSize:]
	switch format := binary.BigEndian.Uint16(data[:headerSize]); format {
	case formatPlain:
	case formatSealed:
		if s.Sealer == nil {
			return nil, ErrNoPassphrase
		}
		body, err = s.Sealer.Open(body)
		if err != nil {
			return nil, err
		}
		defer crypto.ZeroBytes(body)
	default:
		return nil, fmt.Errorf("%w: unknown format %d", ErrCorruptRecord, format)
	}

	creds, err := decodeRecord(body)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":        "FileStore.Load",
		"path":            s.Path,
		"has_association": creds.HasAssociation(),
	}).Info("Loaded stored credentials")
	return creds, nil
}

// Save replaces the stored credentials atomically.
func (s *FileStore) Save(c proxy.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := encodeRecord(c)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	defer crypto.ZeroBytes(body)

	format := formatPlain
	if s.Sealer != nil {
		sealed, err := s.Sealer.Seal(body)
		if err != nil {
			return err
		}
		body, format = sealed, formatSealed
	}

	out := make([]byte, headerSize, headerSize+len(body))
	binary.BigEndian.PutUint16(out, format)
	out = append(out, body...)
	defer crypto.ZeroBytes(out)

	if err := writeAtomic(s.Path, out); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "FileStore.Save",
			"path":     s.Path,
			"error":    err.Error(),
		}).Error("Failed to save credentials")
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "FileStore.Save",
		"path":     s.Path,
		"sealed":   format == formatSealed,
	}).Debug("Saved credentials")
	return nil
}

// Delete overwrites the file with zeros and removes it. A missing file is
// not an error.
func (s *FileStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat credentials: %w", err)
	}

	// Best effort; removal happens either way.
	_ = os.WriteFile(s.Path, make([]byte, info.Size()), 0o600)
	return os.Remove(s.Path)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if err := tmp.Chmod(0o600); err != nil {
		cleanup()
		return fmt.Errorf("failed to restrict temporary file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
