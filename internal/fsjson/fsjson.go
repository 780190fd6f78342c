// Package fsjson is the single gateway to JSON documents on disk.
//
// Every higher layer reads and writes store files through this package; no
// component opens a JSON file directly. Writes go to a temp file, fsync,
// then rename — the rename is the commit point, so concurrent readers see
// either the old document or the new one, never a partial file. Mutations
// additionally hold a per-file advisory lock (a .lock sibling) so a given
// document has one writer at a time even across processes.
package fsjson

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
)

// Mode selects shared (read) or exclusive (write) locking.
type Mode int

const (
	Read Mode = iota
	Write
)

var errLockHeld = errors.New("lock held")

// ReadJSON decodes the file at path into v. A missing file leaves v at its
// zero value and returns nil; malformed JSON returns a Corrupt error naming
// the offending path.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fault.Wrap(fault.KindInternal, err, "read "+path)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fault.Wrap(fault.KindCorrupt, err, "malformed JSON in "+path)
	}
	return nil
}

// ReadRaw returns the file bytes, or nil for a missing file.
func ReadRaw(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fault.Wrap(fault.KindInternal, err, "read "+path)
	}
	return data, nil
}

// WriteJSON atomically writes v as indented JSON to path, creating parent
// directories as needed.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fault.Wrap(fault.KindInternal, err, "encode "+path)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fault.Wrap(fault.KindInternal, err, "mkdir for "+path)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fault.Wrap(fault.KindInternal, err, "open "+tmp)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fault.Wrap(fault.KindInternal, err, "write "+tmp)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fault.Wrap(fault.KindInternal, err, "fsync "+tmp)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fault.Wrap(fault.KindInternal, err, "close "+tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fault.Wrap(fault.KindInternal, err, "commit "+path)
	}
	return nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WithLock runs fn while holding the advisory lock for path. Acquisition
// retries with exponential backoff until the context deadline; expiry maps
// to Conflict. The lock is released on every exit path.
func WithLock(ctx context.Context, path string, mode Mode, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fault.Wrap(fault.KindInternal, err, "mkdir for "+path)
	}

	fl := flock.New(path + ".lock")
	try := func() error {
		var ok bool
		var err error
		if mode == Read {
			ok, err = fl.TryRLock()
		} else {
			ok, err = fl.TryLock()
		}
		if err != nil {
			return backoff.Permanent(fault.Wrap(fault.KindInternal, err, "lock "+path))
		}
		if !ok {
			return errLockHeld
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = 0 // bounded by ctx

	if err := backoff.Retry(try, backoff.WithContext(bo, ctx)); err != nil {
		var fe *fault.Error
		if errors.As(err, &fe) {
			return fe
		}
		return fault.Wrap(fault.KindConflict, err, "lock contention on "+path)
	}
	defer fl.Unlock()

	return fn()
}
