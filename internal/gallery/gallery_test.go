package gallery

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Brownie44l1/hairstyle-api/internal/model"
)

func writeSamples(t *testing.T, staticDir string, gender Gender, names ...string) string {
	t.Helper()
	dir := filepath.Join(staticDir, "hairstyles", string(gender))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", dir, err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("img"), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

func newGallery(t *testing.T, staticDir string, limit int) *Gallery {
	t.Helper()
	g, err := New(staticDir, limit, zap.NewNop())
	if err != nil {
		t.Fatalf("expected gallery, got %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func TestSamplesFiltersByPrefixAndExtension(t *testing.T) {
	staticDir := t.TempDir()
	writeSamples(t, staticDir, Female,
		"round1.jpg", "Round_Bob.PNG", "round-notes.txt", "oval1.jpg", "xround.jpg", "round2.webp", "round3.jpeg")

	g := newGallery(t, staticDir, 5)
	images, err := g.Samples(Female, model.Round)
	if err != nil {
		t.Fatalf("expected samples, got %v", err)
	}

	want := map[string]bool{
		"/static/hairstyles/female/round1.jpg":    true,
		"/static/hairstyles/female/Round_Bob.PNG": true,
		"/static/hairstyles/female/round2.webp":   true,
		"/static/hairstyles/female/round3.jpeg":   true,
	}
	if len(images) != len(want) {
		t.Fatalf("expected %d images, got %v", len(want), images)
	}
	for _, img := range images {
		if !want[img] {
			t.Fatalf("unexpected image %s", img)
		}
	}
}

func TestSamplesCapsResults(t *testing.T) {
	staticDir := t.TempDir()
	writeSamples(t, staticDir, Male,
		"square1.jpg", "square2.jpg", "square3.jpg", "square4.jpg", "square5.jpg", "square6.jpg", "square7.png")

	g := newGallery(t, staticDir, 5)
	images, err := g.Samples(Male, model.Square)
	if err != nil {
		t.Fatalf("expected samples, got %v", err)
	}
	if len(images) != 5 {
		t.Fatalf("expected 5 images, got %d", len(images))
	}
	for _, img := range images {
		base := strings.ToLower(filepath.Base(img))
		if !strings.HasPrefix(base, "square") {
			t.Fatalf("unexpected image %s", img)
		}
	}
}

func TestSamplesMissingFolderIsEmpty(t *testing.T) {
	g := newGallery(t, t.TempDir(), 5)

	images, err := g.Samples(Male, model.Heart)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if images == nil || len(images) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", images)
	}
}

func TestSamplesRejectsUnknownGender(t *testing.T) {
	g := newGallery(t, t.TempDir(), 5)

	if _, err := g.Samples(Gender("other"), model.Oval); err == nil {
		t.Fatal("expected error for unknown gender")
	}
}

func TestSamplesSeeNewFiles(t *testing.T) {
	staticDir := t.TempDir()
	dir := writeSamples(t, staticDir, Female, "oval1.jpg")

	g := newGallery(t, staticDir, 5)
	images, err := g.Samples(Female, model.Oval)
	if err != nil || len(images) != 1 {
		t.Fatalf("expected one sample, got %v (%v)", images, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "oval2.png"), []byte("img"), 0o644); err != nil {
		t.Fatalf("failed to add sample: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		images, err = g.Samples(Female, model.Oval)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(images) == 2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("new sample never became visible, got %v", images)
}

func TestNewRejectsInvalidLimit(t *testing.T) {
	if _, err := New(t.TempDir(), 0, zap.NewNop()); err == nil {
		t.Fatal("expected error for zero limit")
	}
}

func TestStoreSkipsListingScannedBeforeChange(t *testing.T) {
	g := newGallery(t, t.TempDir(), 5)

	gen := g.generation()
	g.invalidate()
	if g.store("female/oval", []string{"/static/hairstyles/female/oval1.jpg"}, gen) {
		t.Fatal("stale listing should not be cached")
	}
	if _, ok := g.cache.Get("female/oval"); ok {
		t.Fatal("stale listing found in cache")
	}

	if !g.store("female/oval", []string{}, g.generation()) {
		t.Fatal("fresh listing should be cached")
	}
	if _, ok := g.cache.Get("female/oval"); !ok {
		t.Fatal("fresh listing missing from cache")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSamplesFollowRecreatedFolder(t *testing.T) {
	staticDir := t.TempDir()
	dir := writeSamples(t, staticDir, Male, "round1.jpg")

	g := newGallery(t, staticDir, 5)
	if images, err := g.Samples(Male, model.Round); err != nil || len(images) != 1 {
		t.Fatalf("expected one sample, got %v (%v)", images, err)
	}
	if !g.isWatched(Male) {
		t.Fatal("expected male folder to be watched")
	}

	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("failed to remove folder: %v", err)
	}
	waitFor(t, "watch to be dropped", func() bool { return !g.isWatched(Male) })

	writeSamples(t, staticDir, Male, "round2.jpg")
	images, err := g.Samples(Male, model.Round)
	if err != nil || len(images) != 1 || images[0] != "/static/hairstyles/male/round2.jpg" {
		t.Fatalf("expected recreated folder listing, got %v (%v)", images, err)
	}
	if !g.isWatched(Male) {
		t.Fatal("expected recreated folder to be watched again")
	}

	if err := os.WriteFile(filepath.Join(dir, "round3.png"), []byte("img"), 0o644); err != nil {
		t.Fatalf("failed to add sample: %v", err)
	}
	waitFor(t, "new sample in recreated folder", func() bool {
		images, err := g.Samples(Male, model.Round)
		return err == nil && len(images) == 2
	})
}
