package xlsxdb

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ownWriteWindow is how long after a save file events are attributed to the save.
const ownWriteWindow = 2 * time.Second

// Watch logs modifications of the table file made by other programs until ctx is
// canceled. The directory is watched rather than the file since saves replace the
// file by renaming.
//
// onChange, if not nil, is called for every external modification.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return err
	}
	name := filepath.Base(s.path)
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				if s.isOwnWrite(time.Now()) {
					continue
				}
				slog.InfoContext(ctx, "Table modified outside of localcrm", "path", s.path, "op", event.Op.String())
				if onChange != nil {
					onChange()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching table", "path", s.path, "err", err)
			}
		}
	}()
	return nil
}

func (s *Store) isOwnWrite(now time.Time) bool {
	last := s.lastSave.Load()
	if last == 0 {
		return false
	}
	return now.Sub(time.Unix(0, last)) < ownWriteWindow
}
