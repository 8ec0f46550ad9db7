package optimizer

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/brightpath-solar/siteimg/pkg/imageproc"
)

func writeFixture(t *testing.T, dir, name string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 40, A: 255})
		}
	}
	format, err := imageproc.FormatFromPath(name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := imageproc.Save(filepath.Join(dir, name), img, format, imageproc.EncodeOptions{Quality: 90}); err != nil {
		t.Fatalf("failed to write fixture %s: %v", name, err)
	}
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func testConfig(src, dest string) Config {
	return Config{
		SourceDir: src,
		DestDir:   dest,
		Quality:   80,
		Widths:    []int{400, 800},
		Workers:   1,
		Compress:  DefaultCompressSettings(),
	}
}

func TestRun_ProducesVariants(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "optimized")
	writeFixture(t, src, "panel.jpg", 900, 450)
	writeFixture(t, src, "logo.png", 500, 250)

	res, err := New(testConfig(src, dest)).Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	want := []string{
		"logo-400w.png", "logo-800w.png", "logo.webp",
		"panel-400w.jpg", "panel-800w.jpg", "panel.webp",
	}
	got := listNames(t, dest)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %s, got %s", want[i], got[i])
		}
	}

	if succeeded, failed := res.Transform.Counts(); succeeded != 6 || failed != 0 {
		t.Errorf("expected 6 transform outcomes, got %d / %d", succeeded, failed)
	}
	if res.Compress == nil || len(res.Compress.Outcomes) != 6 {
		t.Error("expected compression pass over all 6 outputs")
	}
}

func TestRun_NeverUpscales(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFixture(t, src, "logo.png", 500, 250)
	writeFixture(t, src, "panel.jpg", 900, 450)

	if _, err := New(testConfig(src, dest)).Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	tests := []struct {
		name          string
		width, height int
	}{
		{"logo-400w.png", 400, 200},
		{"logo-800w.png", 500, 250},
		{"panel-400w.jpg", 400, 200},
		{"panel-800w.jpg", 800, 400},
		{"panel.webp", 900, 450},
	}
	for _, tt := range tests {
		img, err := imageproc.Open(filepath.Join(dest, tt.name))
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if b := img.Bounds(); b.Dx() != tt.width || b.Dy() != tt.height {
			t.Errorf("%s: expected %dx%d, got %dx%d", tt.name, tt.width, tt.height, b.Dx(), b.Dy())
		}
	}
}

func TestRun_MissingSourceLeavesEmptyDest(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "optimized")

	_, err := New(testConfig(filepath.Join(t.TempDir(), "nope"), dest)).Run(context.Background())
	if err == nil {
		t.Fatal("expected error for missing source directory")
	}

	info, statErr := os.Stat(dest)
	if statErr != nil || !info.IsDir() {
		t.Fatalf("destination directory should exist: %v", statErr)
	}
	if names := listNames(t, dest); len(names) != 0 {
		t.Errorf("expected empty destination, got %v", names)
	}
}

func TestRun_SkipsUnsupportedExtensions(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFixture(t, src, "hero.webp", 300, 150)
	os.WriteFile(filepath.Join(src, "notes.txt"), []byte("not an image"), 0644)
	os.WriteFile(filepath.Join(src, "anim.gif"), []byte("GIF89a garbage"), 0644)
	os.Mkdir(filepath.Join(src, "nested.png"), 0755)

	res, err := New(testConfig(src, dest)).Run(context.Background())
	if err != nil {
		t.Fatalf("unsupported files must be skipped, got %v", err)
	}

	// WebP sources only get the full-size copy.
	if got := listNames(t, dest); len(got) != 1 || got[0] != "hero.webp" {
		t.Errorf("expected only hero.webp, got %v", got)
	}
	if len(res.Transform.Outcomes) != 1 {
		t.Errorf("expected 1 outcome, got %d", len(res.Transform.Outcomes))
	}
}

func TestRun_FailFast(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	os.WriteFile(filepath.Join(src, "broken.jpg"), []byte("not really a jpeg"), 0644)

	res, err := New(testConfig(src, dest)).Run(context.Background())
	if err == nil {
		t.Fatal("expected decode error")
	}
	if res.Compress != nil {
		t.Error("compression must not run after a transform failure")
	}
}

func TestRun_Idempotent(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFixture(t, src, "panel.jpg", 900, 450)

	opt := New(testConfig(src, dest))
	if _, err := opt.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := listNames(t, dest)
	if _, err := opt.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	second := listNames(t, dest)

	if len(first) != len(second) {
		t.Errorf("re-run changed the file set: %v vs %v", first, second)
	}
}

func TestRun_Workers(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	for _, name := range []string{"a.jpg", "b.jpg", "c.png", "d.webp"} {
		writeFixture(t, src, name, 240, 120)
	}

	cfg := testConfig(src, dest)
	cfg.Workers = 3
	res, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// 4 WebP copies plus 2 widths for each of the 3 responsive sources.
	if n := len(res.Transform.Outcomes); n != 10 {
		t.Errorf("expected 10 outcomes, got %d", n)
	}
	if n := len(listNames(t, dest)); n != 10 {
		t.Errorf("expected 10 files, got %d", n)
	}
}

func TestRun_SameBaseNameLaterWins(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFixture(t, src, "hero.jpg", 300, 150)
	writeFixture(t, src, "hero.png", 200, 100)
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		writeFixture(t, src, name, 60, 30)
	}

	cfg := testConfig(src, dest)
	cfg.Workers = 4

	for i := 0; i < 5; i++ {
		if _, err := New(cfg).Run(context.Background()); err != nil {
			t.Fatalf("run failed: %v", err)
		}

		img, err := imageproc.Open(filepath.Join(dest, "hero.webp"))
		if err != nil {
			t.Fatal(err)
		}
		// hero.png sorts after hero.jpg, so its copy must be the one left.
		if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
			t.Fatalf("run %d: hero.webp is %dx%d, want 200x100", i, b.Dx(), b.Dy())
		}
	}
}

func TestGroupByBase(t *testing.T) {
	groups := groupByBase([]string{"a.jpg", "hero.jpg", "b.png", "hero.png", "hero.webp"})
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %v", groups)
	}
	hero := groups[1]
	if len(hero) != 3 || hero[0] != "hero.jpg" || hero[1] != "hero.png" || hero[2] != "hero.webp" {
		t.Errorf("hero group out of order: %v", hero)
	}
}

func TestDiscover_KeepsCaseInsensitiveExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "a.JPG", 10, 10)
	writeFixture(t, dir, "b.Jpeg", 10, 10)
	os.WriteFile(filepath.Join(dir, "c.svg"), []byte("<svg/>"), 0644)

	names, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Errorf("expected 2 images, got %v", names)
	}
}
