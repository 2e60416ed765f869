// Package gallery finds the example hairstyle photos stored under static/hairstyles.
package gallery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/Brownie44l1/hairstyle-api/internal/model"
)

type Gender string

const (
	Female Gender = "female"
	Male   Gender = "male"
)

// Genders lists the sample folders in response order.
var Genders = []Gender{Female, Male}

// URLPrefix is where the static handler exposes the sample folders.
const URLPrefix = "/static/hairstyles"

var allowedExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// Gallery lists sample images per gender and facial shape. Listings are cached
// while the folder is watched and dropped on every change.
type Gallery struct {
	root   string
	limit  int
	logger *zap.Logger

	cache   *lru.Cache[string, []string]
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup

	// mu guards watched and gen. gen counts invalidations so a listing
	// scanned before a change is never cached after it.
	mu      sync.Mutex
	gen     uint64
	watched map[Gender]bool
}

// New creates a gallery rooted at <staticDir>/hairstyles returning at most limit paths per lookup.
func New(staticDir string, limit int, logger *zap.Logger) (*Gallery, error) {
	if limit < 1 {
		return nil, fmt.Errorf("invalid sample limit %d", limit)
	}

	cache, err := lru.New[string, []string](len(Genders) * model.NumShapes)
	if err != nil {
		return nil, err
	}

	g := &Gallery{
		root:    filepath.Join(staticDir, "hairstyles"),
		limit:   limit,
		logger:  logger.Named("gallery"),
		cache:   cache,
		watched: make(map[Gender]bool),
	}
	g.watch()
	return g, nil
}

func (g *Gallery) watch() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		g.logger.Warn("file watcher unavailable, sample listings will not be cached", zap.Error(err))
		return
	}
	g.watcher = watcher

	for _, gender := range Genders {
		if !g.ensureWatched(gender) {
			g.logger.Warn("sample folder not watched yet", zap.String("dir", g.dir(gender)))
		}
	}

	g.wg.Add(1)
	go g.run()
}

// ensureWatched adds the gender folder to the watcher if it is not watched
// already. Folders that are missing or were removed are retried on every lookup.
func (g *Gallery) ensureWatched(gender Gender) bool {
	if g.watcher == nil {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.watched[gender] {
		return true
	}
	if err := g.watcher.Add(g.dir(gender)); err != nil {
		g.logger.Debug("cannot watch sample folder", zap.String("dir", g.dir(gender)), zap.Error(err))
		return false
	}
	g.watched[gender] = true
	return true
}

func (g *Gallery) run() {
	defer g.wg.Done()
	for {
		select {
		case event, ok := <-g.watcher.Events:
			if !ok {
				return
			}
			g.logger.Debug("sample folder changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			g.invalidate()
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				g.forget(event.Name)
			}
		case err, ok := <-g.watcher.Errors:
			if !ok {
				return
			}
			g.logger.Warn("file watcher error", zap.Error(err))
			g.invalidate()
		}
	}
}

func (g *Gallery) invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	g.cache.Purge()
}

// forget marks a removed or renamed gender folder as unwatched. The watcher
// has already dropped the watch; the next lookup re-adds it once the folder exists again.
func (g *Gallery) forget(name string) {
	for _, gender := range Genders {
		dir := g.dir(gender)
		if filepath.Clean(name) != dir {
			continue
		}

		g.mu.Lock()
		if g.watched[gender] {
			g.watched[gender] = false
			g.logger.Info("sample folder removed, watch dropped", zap.String("dir", dir))
		}
		g.mu.Unlock()
	}
}

func (g *Gallery) isWatched(gender Gender) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.watched[gender]
}

func (g *Gallery) generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

// store caches images unless the folders changed since gen was read.
func (g *Gallery) store(key string, images []string, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen != gen {
		return false
	}
	g.cache.Add(key, images)
	return true
}

// Samples returns URL paths of images whose name starts with the shape label
// (case-insensitive) and has an allowed extension. A missing folder yields an empty list.
func (g *Gallery) Samples(gender Gender, shape model.FacialShape) ([]string, error) {
	if gender != Female && gender != Male {
		return nil, fmt.Errorf("unknown gender %q", gender)
	}

	key := string(gender) + "/" + shape.Key()
	if images, ok := g.cache.Get(key); ok {
		return clone(images), nil
	}

	watched := g.ensureWatched(gender)
	gen := g.generation()
	images, err := g.scan(gender, shape)
	if err != nil {
		return nil, err
	}
	if watched {
		g.store(key, images, gen)
	}
	return clone(images), nil
}

func (g *Gallery) scan(gender Gender, shape model.FacialShape) ([]string, error) {
	images := make([]string, 0, g.limit)

	entries, err := os.ReadDir(g.dir(gender))
	if errors.Is(err, fs.ErrNotExist) {
		return images, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s samples: %w", gender, err)
	}

	prefix := shape.Key()
	for _, entry := range entries {
		if len(images) == g.limit {
			break
		}
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if strings.HasPrefix(name, prefix) && hasAllowedExtension(name) {
			images = append(images, path.Join(URLPrefix, string(gender), entry.Name()))
		}
	}
	return images, nil
}

func (g *Gallery) dir(gender Gender) string {
	return filepath.Join(g.root, string(gender))
}

// Close stops the folder watcher.
func (g *Gallery) Close() error {
	if g.watcher == nil {
		return nil
	}
	err := g.watcher.Close()
	g.wg.Wait()
	return err
}

func clone(images []string) []string {
	return append(make([]string, 0, len(images)), images...)
}

func hasAllowedExtension(name string) bool {
	for _, ext := range allowedExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
