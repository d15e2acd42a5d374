// Package grants provides a local grant matrix for self-hosted deployments:
// a YAML file standing in for the core API's permissions endpoint, reloaded
// on change so grant edits apply without a restart.
package grants

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/gr-thach/cli-repo-sub003/pkg/observability"
	"github.com/gr-thach/cli-repo-sub003/pkg/permission"
)

type grantsFile struct {
	Policies []grantRow `yaml:"policies"`
}

type grantRow struct {
	Role     string   `yaml:"role"`
	Resource string   `yaml:"resource"`
	Actions  []string `yaml:"actions"`
	Plans    []string `yaml:"plans"`
}

// Local serves grant rows from a YAML file. It implements
// permission.GrantSource. Safe for concurrent use.
type Local struct {
	path   string
	logger *observability.Logger

	mu   sync.RWMutex
	rows []permission.PolicyRow

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// OpenLocal loads the grants file and watches it for changes. A malformed
// file fails the open; a malformed rewrite later keeps the previous rows.
func OpenLocal(path string, logger *observability.Logger) (*Local, error) {
	l := &Local{path: path, logger: logger, done: make(chan struct{})}
	if err := l.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create grants watcher: %w", err)
	}
	// Watch the directory: editors replace the file, which drops a watch
	// placed on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch grants file: %w", err)
	}
	l.watcher = watcher
	go l.watch()
	return l, nil
}

// Close stops the file watcher.
func (l *Local) Close() error {
	close(l.done)
	return l.watcher.Close()
}

// ListPolicies filters the loaded rows by the query's roles, resources,
// action, and plan. A row with no plans applies to every plan.
func (l *Local) ListPolicies(ctx context.Context, q permission.PolicyQuery) ([]permission.PolicyRow, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var matched []permission.PolicyRow
	for _, row := range l.rows {
		if !containsRole(q.Roles, row.Role) {
			continue
		}
		if !containsResource(q.Resources, row.Resource) {
			continue
		}
		if !containsAction(row.Actions, q.Action) {
			continue
		}
		if len(row.Plans) > 0 && !containsPlan(row.Plans, q.Plan) {
			continue
		}
		matched = append(matched, row)
	}
	return matched, nil
}

func (l *Local) reload() error {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("failed to read grants file: %w", err)
	}

	var file grantsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("failed to parse grants file: %w", err)
	}

	rows := make([]permission.PolicyRow, 0, len(file.Policies))
	for _, raw := range file.Policies {
		row := permission.PolicyRow{
			Role:     permission.Role(raw.Role),
			Resource: permission.Resource(raw.Resource),
		}
		for _, a := range raw.Actions {
			row.Actions = append(row.Actions, permission.Action(a))
		}
		for _, p := range raw.Plans {
			row.Plans = append(row.Plans, permission.PlanCode(p))
		}
		if err := row.Validate(); err != nil {
			return fmt.Errorf("grants file: %w", err)
		}
		rows = append(rows, row)
	}

	l.mu.Lock()
	l.rows = rows
	l.mu.Unlock()
	return nil
}

func (l *Local) watch() {
	for {
		select {
		case <-l.done:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(l.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := l.reload(); err != nil {
				l.logger.WithError(err).Warn("grants file reload failed, keeping previous rows")
				continue
			}
			l.logger.WithField("path", l.path).Info("grants file reloaded")
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.WithError(err).Warn("grants file watcher error")
		}
	}
}

func containsRole(roles []permission.Role, role permission.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func containsResource(resources []permission.Resource, resource permission.Resource) bool {
	for _, r := range resources {
		if r == resource {
			return true
		}
	}
	return false
}

func containsAction(actions []permission.Action, action permission.Action) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

func containsPlan(plans []permission.PlanCode, plan permission.PlanCode) bool {
	for _, p := range plans {
		if p == plan {
			return true
		}
	}
	return false
}
