// Package registry resolves datasource names to backend endpoints.
//
// Sources are declared in a yaml file and can be reloaded at run time:
// the registry watches the file and atomically swaps the source table on
// change, so in-flight dispatches keep the table they started with.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/geoplex/stacfan/internal/errors"
)

// Source describes one datasource backend.
type Source struct {
	// Endpoint is the backend's search URL; the canonical query is
	// POSTed to it as JSON.
	Endpoint string `yaml:"endpoint"`
}

// sourcesFile is the yaml shape of the sources file.
type sourcesFile struct {
	Sources map[string]Source `yaml:"sources"`
}

// Registry is a name-indexed table of datasource backends.
type Registry struct {
	path string

	mu      sync.RWMutex
	sources map[string]Source
}

// Load reads and validates the sources file.
func Load(path string) (*Registry, error) {
	r := &Registry{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the sources file and swaps the table. On error the
// previous table is kept.
func (r *Registry) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return errors.New(errors.ErrCodeConfigNotFound,
			fmt.Sprintf("read sources file %s: %v", r.path, err), err)
	}

	var sf sourcesFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return errors.New(errors.ErrCodeSourcesInvalid,
			fmt.Sprintf("parse sources file %s: %v", r.path, err), err)
	}
	if len(sf.Sources) == 0 {
		return errors.New(errors.ErrCodeSourcesInvalid,
			fmt.Sprintf("sources file %s declares no sources", r.path), nil)
	}
	for name, src := range sf.Sources {
		if err := validateSource(name, src); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.sources = sf.Sources
	r.mu.Unlock()

	slog.Info("sources_loaded",
		slog.String("path", r.path),
		slog.Int("sources", len(sf.Sources)))
	return nil
}

func validateSource(name string, src Source) error {
	if src.Endpoint == "" {
		return errors.New(errors.ErrCodeSourcesInvalid,
			fmt.Sprintf("source %q has no endpoint", name), nil)
	}
	u, err := url.Parse(src.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New(errors.ErrCodeSourcesInvalid,
			fmt.Sprintf("source %q has invalid endpoint %q", name, src.Endpoint), err)
	}
	return nil
}

// Lookup resolves a datasource name.
func (r *Registry) Lookup(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[name]
	return src, ok
}

// Names returns the registered datasource names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

// Watch reloads the registry whenever the sources file changes, until
// the context is cancelled. The parent directory is watched rather than
// the file itself so editor-style replace-on-save is picked up.
func (r *Registry) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(r.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(r.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.Reload(); err != nil {
				slog.Warn("sources_reload_failed",
					slog.String("path", r.path),
					slog.String("error", err.Error()))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("sources_watch_error", slog.String("error", err.Error()))
		}
	}
}
