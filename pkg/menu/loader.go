package menu

import (
	_ "embed"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultDefinitions []byte

// Default returns the registry built from the embedded definitions.
func Default() (*Registry, error) {
	defs, err := Parse(defaultDefinitions)
	if err != nil {
		return nil, fmt.Errorf("embedded menus: %w", err)
	}
	return NewRegistry(defs)
}

// Parse decodes one YAML menu document.
func Parse(data []byte) (Definitions, error) {
	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return Definitions{}, fmt.Errorf("parse YAML: %w", err)
	}
	return defs, nil
}

// Loader loads menu definitions from a directory of YAML files and can
// hot-reload them. Every load publishes a fresh immutable Registry; callers
// holding an older one keep a consistent view.
type Loader struct {
	dir string

	mu       sync.RWMutex
	current  *Registry
	onReload func(*Registry)
}

// NewLoader creates a loader for dir. An empty dir means the embedded
// defaults only.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// OnReload registers fn to be called with each registry produced by a
// successful reload.
func (l *Loader) OnReload(fn func(*Registry)) {
	l.mu.Lock()
	l.onReload = fn
	l.mu.Unlock()
}

// Load reads every .yaml and .yml file in the directory, merges them over the
// embedded defaults (a file's location replaces the default one) and swaps in
// the resulting registry.
func (l *Loader) Load() (*Registry, error) {
	base, err := Parse(defaultDefinitions)
	if err != nil {
		return nil, fmt.Errorf("embedded menus: %w", err)
	}

	merged := map[string]MenuDefinition{}
	for _, d := range base.Menus {
		merged[CanonicalLocation(d.Location)] = d
	}
	flows := maps.Clone(base.Flows)
	if flows == nil {
		flows = map[string]string{}
	}

	if l.dir != "" {
		entries, err := os.ReadDir(l.dir)
		if err != nil {
			return nil, fmt.Errorf("read menu dir %q: %w", l.dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !isYAML(entry.Name()) {
				continue
			}
			path := filepath.Join(l.dir, entry.Name())
			defs, err := l.loadFile(path)
			if err != nil {
				return nil, fmt.Errorf("load %q: %w", path, err)
			}
			for _, d := range defs.Menus {
				merged[CanonicalLocation(d.Location)] = d
			}
			maps.Copy(flows, defs.Flows)
		}
	}

	defs := Definitions{Flows: flows}
	for _, d := range merged {
		defs.Menus = append(defs.Menus, d)
	}
	reg, err := NewRegistry(defs)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = reg
	l.mu.Unlock()
	return reg, nil
}

// Registry returns the most recently loaded registry, or nil before Load.
func (l *Loader) Registry() *Registry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

func (l *Loader) loadFile(path string) (Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definitions{}, err
	}
	defs, err := Parse(data)
	if err != nil {
		return Definitions{}, err
	}
	if err := Validate(defs); err != nil {
		return Definitions{}, err
	}
	return defs, nil
}

// WatchAndReload watches the menu directory and reloads on change. A reload
// that fails validation is logged and the previous registry stays active.
// This blocks until done is closed.
func (l *Loader) WatchAndReload(done <-chan struct{}) error {
	if l.dir == "" {
		<-done
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", l.dir, err)
	}

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isYAML(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			reg, err := l.Load()
			if err != nil {
				slog.Warn("menu reload rejected", slog.String("file", event.Name), slog.String("error", err.Error()))
				continue
			}
			slog.Info("menus reloaded", slog.Int("locations", len(reg.Locations())))
			l.mu.RLock()
			fn := l.onReload
			l.mu.RUnlock()
			if fn != nil {
				fn(reg)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
