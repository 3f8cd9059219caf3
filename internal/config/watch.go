package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads path whenever it changes and passes the new Config to
// onChange. It blocks until ctx is cancelled. A reload that fails to parse is
// logged and the previous config stays active.
// The parent directory is watched so a temp file renamed over path is seen.
func Watch(ctx context.Context, path string, logger *zap.Logger, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}
	logger.Info("watching config", zap.String("path", target))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			// a rename over path arrives as Create
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(target)
			if err != nil {
				logger.Error("config reload failed, keeping previous config", zap.String("path", target), zap.Error(err))
				continue
			}
			logger.Info("config reloaded", zap.String("path", target))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watcher error", zap.Error(err))
		}
	}
}
