package sessionstore

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"

	"github.com/fsnotify/fsnotify"

	"zerostack-chat/internal/logging"
)

// Watch calls fn whenever the saved record changes on disk, for example when
// another instance logs out. Writes that leave the record unchanged are not
// reported. Watch blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, fn func(Record)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// The file is replaced by rename, so watch its directory.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch session directory %s: %w", dir, err)
	}
	s.logger.Debugf("watching session file: %s", s.path)

	last, err := s.Load()
	if err != nil {
		s.logger.Warn("initial session read failed", logging.Field("error", err))
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("stopping session watcher: context canceled")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			record, err := s.Load()
			if err != nil {
				s.logger.Warn("session reload failed", logging.Field("error", err))
				continue
			}
			if reflect.DeepEqual(record, last) {
				continue
			}
			last = record
			s.logger.Debug("session changed on disk",
				logging.Field("op", event.Op.String()),
				logging.Field("authenticated", record.Authenticated()),
			)
			fn(record)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", logging.Field("error", err))
		}
	}
}
