package optimizer

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/brightpath-solar/siteimg/pkg/imageproc"
)

func TestCompressDir_KeepsNamesAndDecodes(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "a.jpg", 200, 100)
	writeFixture(t, dir, "b.png", 200, 100)
	writeFixture(t, dir, "c.webp", 200, 100)
	os.WriteFile(filepath.Join(dir, "readme.md"), []byte("# hi"), 0644)

	before := listNames(t, dir)

	rep, err := CompressDir(context.Background(), dir, DefaultCompressSettings())
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}

	after := listNames(t, dir)
	if len(before) != len(after) {
		t.Fatalf("file set changed: %v -> %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("name changed: %s -> %s", before[i], after[i])
		}
	}

	if len(rep.Outcomes) != 3 {
		t.Errorf("expected 3 compressed files, got %d", len(rep.Outcomes))
	}

	for _, name := range []string{"a.jpg", "b.png", "c.webp"} {
		img, err := imageproc.Open(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("%s no longer decodes: %v", name, err)
			continue
		}
		if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
			t.Errorf("%s: dimensions changed to %dx%d", name, b.Dx(), b.Dy())
		}
	}
}

func TestCompressDir_QuantizesPNG(t *testing.T) {
	dir := t.TempDir()

	// A flat-colour graphic: a small palette reproduces it exactly.
	logo := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			logo.Set(x, y, color.NRGBA{R: uint8(x / 16 * 60), G: uint8(y / 16 * 60), B: 200, A: 255})
		}
	}
	if _, err := imageproc.Save(filepath.Join(dir, "b.png"), logo, imageproc.PNG, imageproc.EncodeOptions{}); err != nil {
		t.Fatal(err)
	}

	if _, err := CompressDir(context.Background(), dir, DefaultCompressSettings()); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, "b.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := img.(*image.Paletted); !ok {
		t.Errorf("expected a paletted PNG, got %T", img)
	}
}

func TestCompressDir_AbortsOnFirstError(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a-broken.jpg"), []byte("garbage"), 0644)
	writeFixture(t, dir, "b.jpg", 20, 20)

	rep, err := CompressDir(context.Background(), dir, DefaultCompressSettings())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(rep.Outcomes) != 1 {
		t.Errorf("pass should stop at the first failure, got %d outcomes", len(rep.Outcomes))
	}
}

func TestCompressDir_MissingDir(t *testing.T) {
	if _, err := CompressDir(context.Background(), filepath.Join(t.TempDir(), "nope"), DefaultCompressSettings()); err == nil {
		t.Error("expected error for missing directory")
	}
}
