package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"blockeditor/internal/domain"
	"blockeditor/internal/template"
)

// reloadDebounce coalesces bursts of editor writes into one reload.
const reloadDebounce = 500 * time.Millisecond

// ─────────────────────────────────────────────────────────────
// Template Service: post type templates loaded from YAML files
// ─────────────────────────────────────────────────────────────

// TemplateService serves post type templates from a directory of YAML files
// and reconciles block trees against them.
type TemplateService struct {
	dir          string
	synchronizer *template.Synchronizer
	emitter      EventEmitter
	log          *zap.Logger

	mu        sync.RWMutex
	templates map[string]*domain.PostTypeTemplate

	// watcher lifecycle
	watchMu     sync.Mutex
	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// NewTemplateService creates a TemplateService. Call Load before use.
func NewTemplateService(dir string, synchronizer *template.Synchronizer, emitter EventEmitter, log *zap.Logger) *TemplateService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TemplateService{
		dir:          dir,
		synchronizer: synchronizer,
		emitter:      emitter,
		log:          log.Named("templates"),
		templates:    make(map[string]*domain.PostTypeTemplate),
	}
}

// Load reads every *.yaml and *.yml file in the directory. A missing
// directory yields no templates. On any invalid file the current set is
// kept and the error is returned.
func (s *TemplateService) Load() error {
	loaded, err := readTemplateDir(s.dir)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.templates = loaded
	s.mu.Unlock()
	s.log.Info("templates loaded", zap.Int("count", len(loaded)), zap.String("dir", s.dir))
	return nil
}

func readTemplateDir(dir string) (map[string]*domain.PostTypeTemplate, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]*domain.PostTypeTemplate{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read templates dir: %w", err)
	}

	out := make(map[string]*domain.PostTypeTemplate)
	for _, e := range entries {
		if e.IsDir() || !isTemplateFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		ptt, err := readTemplateFile(path)
		if err != nil {
			return nil, err
		}
		if _, dup := out[ptt.PostType]; dup {
			return nil, fmt.Errorf("%s: duplicate template for post type %q", path, ptt.PostType)
		}
		out[ptt.PostType] = ptt
	}
	return out, nil
}

func readTemplateFile(path string) (*domain.PostTypeTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	var ptt domain.PostTypeTemplate
	if err := yaml.Unmarshal(data, &ptt); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	if err := template.ValidatePostTypeTemplate(&ptt); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &ptt, nil
}

func isTemplateFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// Put registers ptt directly, replacing any template for the same post type.
func (s *TemplateService) Put(ptt *domain.PostTypeTemplate) error {
	if err := template.ValidatePostTypeTemplate(ptt); err != nil {
		return err
	}
	s.mu.Lock()
	s.templates[ptt.PostType] = ptt
	s.mu.Unlock()
	return nil
}

// Get returns the template for postType.
func (s *TemplateService) Get(postType string) (*domain.PostTypeTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ptt, ok := s.templates[postType]
	return ptt, ok
}

// List returns all templates sorted by post type.
func (s *TemplateService) List() []domain.PostTypeTemplate {
	s.mu.RLock()
	out := make([]domain.PostTypeTemplate, 0, len(s.templates))
	for _, ptt := range s.templates {
		out = append(out, *ptt)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PostType < out[j].PostType })
	return out
}

// Synchronizer returns the synchronizer sessions should use.
func (s *TemplateService) Synchronizer() *template.Synchronizer {
	return s.synchronizer
}

// ── Reconciliation ─────────────────────────────────────────

func (s *TemplateService) lookup(postType string) (*domain.PostTypeTemplate, error) {
	ptt, ok := s.Get(postType)
	if !ok {
		return nil, fmt.Errorf("template for post type %q: %w", postType, domain.ErrNotFound)
	}
	return ptt, nil
}

// Check reports whether blocks match the template of postType.
func (s *TemplateService) Check(blocks []domain.Block, postType string) (bool, error) {
	ptt, err := s.lookup(postType)
	if err != nil {
		return false, err
	}
	return template.DoBlocksMatchTemplate(blocks, ptt.Blocks), nil
}

// Synchronize reshapes blocks into the template of postType.
func (s *TemplateService) Synchronize(blocks []domain.Block, postType string) ([]domain.Block, error) {
	ptt, err := s.lookup(postType)
	if err != nil {
		return nil, err
	}
	return s.synchronizer.SynchronizeBlocksWithTemplate(blocks, ptt.Blocks), nil
}

// ── Watcher ────────────────────────────────────────────────

// Watch reloads the templates whenever a file in the directory changes.
// A reload that fails keeps the previous templates. Stop ends the watch.
func (s *TemplateService) Watch(ctx context.Context) error {
	s.Stop()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create templates dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.watchMu.Lock()
	s.watcher = watcher
	s.watchCancel = cancel
	s.watchDone = done
	s.watchMu.Unlock()

	go s.watchLoop(watchCtx, watcher, done)
	s.log.Info("watching templates", zap.String("dir", s.dir))
	return nil
}

func (s *TemplateService) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	var debounce *time.Timer
	reloads := make(chan struct{}, 1)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isTemplateFile(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				select {
				case reloads <- struct{}{}:
				default:
				}
			})
		case <-reloads:
			if err := s.Load(); err != nil {
				s.log.Warn("template reload failed", zap.Error(err))
				continue
			}
			s.emitter.Emit(ctx, EventTemplateReloaded, s.dir)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("template watcher error", zap.Error(err))
		}
	}
}

// Stop tears down the file watcher and waits for its goroutine to exit.
func (s *TemplateService) Stop() {
	s.watchMu.Lock()
	cancel, watcher, done := s.watchCancel, s.watcher, s.watchDone
	s.watchCancel, s.watcher, s.watchDone = nil, nil, nil
	s.watchMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if watcher != nil {
		watcher.Close()
	}
	if done != nil {
		<-done
	}
}
