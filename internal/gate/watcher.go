package gate

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// PolicyWatcher invalidates a PolicySource when the policy file changes
type PolicyWatcher struct {
	path     string
	policies PolicySource
	logger   *zap.SugaredLogger
}

// NewPolicyWatcher creates a watcher for the policy file at path
func NewPolicyWatcher(path string, policies PolicySource, logger *zap.SugaredLogger) *PolicyWatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PolicyWatcher{path: path, policies: policies, logger: logger}
}

// Run watches until ctx is done. The parent directory is watched so that
// editors replacing the file by rename are noticed too.
func (w *PolicyWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create policy watcher")
	}
	defer func() { _ = watcher.Close() }()

	target := filepath.Clean(w.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return errors.Wrapf(err, "watch %s", filepath.Dir(target))
	}

	w.logger.Infow("Watching promotion policy", "path", target)

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
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.policies.Invalidate()
			w.logger.Infow("Promotion policy changed, cache invalidated", "path", target, "op", event.Op.String())

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnw("Policy watcher error", "error", err)
		}
	}
}
