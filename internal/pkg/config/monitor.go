package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/gethiox/strummer/internal/pkg/logger"
)

// DetectChanges reports writes to the config file. Parent directory is watched
// so editors replacing the file through rename are noticed as well.
func DetectChanges(ctx context.Context, path string) <-chan bool {
	var change = make(chan bool)

	go func() {
		defer close(change)
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			log.Info(fmt.Sprintf("config watcher failed: %v", err), logger.Warning)
			return
		}

		go func() {
			<-ctx.Done()
			err := watcher.Close()
			if err != nil {
				log.Info(fmt.Sprintf("closing watcher failed: %v", err), logger.Warning)
			}
		}()

		target := filepath.Clean(path)
		err = watcher.Add(filepath.Dir(target))
		if err != nil {
			log.Info(fmt.Sprintf("watching \"%s\" failed: %v", path, err), logger.Warning)
			return
		}

		for event := range watcher.Events {
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			log.Info(fmt.Sprintf("config change detected: %s", event.Name), logger.Info)
			select {
			case change <- true:
			case <-ctx.Done():
				return
			}
		}
	}()

	return change
}
