package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/irsampler/internal/errors"
	"golang.org/x/sys/unix"
)

const (
	pidFile = "irsampler.pid"
)

// File is a single-instance guard backed by a PID file.
type File struct {
	path string
}

// New returns a guard for <dir>/irsampler.pid; an empty dir selects the
// system temp directory.
func New(dir string) *File {
	if dir == "" {
		dir = os.TempDir()
	}

	return &File{path: filepath.Join(dir, pidFile)}
}

// Path returns the PID file location.
func (f *File) Path() string {
	return f.path
}

// Write writes the current process ID to the PID file. It fails with
// ErrAlreadyRunning when the file names a live process.
func (f *File) Write() error {
	errFactory := errors.New()
	pid := os.Getpid()

	if bytes, err := os.ReadFile(f.path); err == nil {
		// PID file exists, check if the process is running
		other, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
		if err == nil && other != pid && alive(other) {
			return errFactory.WithData(errors.ErrAlreadyRunning, struct {
				PID  int
				Path string
			}{other, f.path})
		}
	} else if !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}
	if err := os.WriteFile(f.path, []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove removes the PID file.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}

// alive reports whether a process with the given ID exists. EPERM means it
// exists but belongs to another user.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
