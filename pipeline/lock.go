package pipeline

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// staleLockAge is how old a lock file may be before another run is
// allowed to take it over. A normal run finishes well inside this.
const staleLockAge = 2 * time.Hour

// Lock is a filesystem lock preventing two pipeline runs from writing
// the same stage files concurrently.
type Lock struct {
	path string
}

// AcquireLock creates the lock file exclusively. A leftover lock older
// than staleLockAge is treated as abandoned and taken over.
func AcquireLock(path string) (*Lock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(file, "%d %d\n", os.Getpid(), time.Now().Unix())
			file.Close()
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		owner, created, rerr := readLock(path)
		if rerr != nil {
			// Unreadable lock file, assume abandoned.
			os.Remove(path)
			continue
		}
		if time.Since(created) < staleLockAge {
			return nil, fmt.Errorf("another run holds the lock (pid %d since %s)", owner, created.Format(time.RFC3339))
		}
		os.Remove(path)
	}
	return nil, fmt.Errorf("failed to acquire lock at %s", path)
}

// Release removes the lock file.
func (l *Lock) Release() error {
	return os.Remove(l.path)
}

func readLock(path string) (pid int, created time.Time, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, time.Time{}, err
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		return 0, time.Time{}, fmt.Errorf("malformed lock file")
	}
	pid, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, time.Time{}, err
	}
	unix, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, time.Time{}, err
	}
	return pid, time.Unix(unix, 0), nil
}
