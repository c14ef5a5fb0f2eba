package sensor

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"
)

// FileSource reads an absolute cumulative step count from a file maintained by
// the platform's pedometer bridge, polling it for changes. It stands in for a
// native sensor binding on hosts where the counter is exported through the
// filesystem.
type FileSource struct {
	path         string
	pollInterval time.Duration
}

// NewFileSource constructs a FileSource polling path at the given interval.
func NewFileSource(path string, pollInterval time.Duration) *FileSource {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &FileSource{path: path, pollInterval: pollInterval}
}

// Available implements Source.
func (s *FileSource) Available(context.Context) (bool, error) {
	_, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RequestPermission implements Source. Readability of the counter file is the
// only permission that applies here.
func (s *FileSource) RequestPermission(context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return ErrPermissionDenied
	}
	return f.Close()
}

// StepCountSince implements Source. The file only exposes the current absolute
// count, so historical queries report zero and the caller keeps its own
// persisted baseline.
func (s *FileSource) StepCountSince(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Watch implements Source, delivering a reading whenever the counter changes.
func (s *FileSource) Watch(ctx context.Context, fn func(Reading)) (func(), error) {
	current, err := s.read()
	if err != nil {
		return nil, err
	}
	fn(Reading{Steps: current})

	watchCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		last := current
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
			}

			count, err := s.read()
			if err != nil {
				continue
			}
			if count != last {
				last = count
				fn(Reading{Steps: count})
			}
		}
	}()
	return cancel, nil
}

func (s *FileSource) read() (int64, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}
