package publisher

import (
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/brightpath-solar/siteimg/pkg/imageproc"
	"github.com/brightpath-solar/siteimg/pkg/storage"
)

type fakeUploader struct {
	inputs []storage.UploadInput
	bodies [][]byte
	failOn string
}

func (f *fakeUploader) Upload(ctx context.Context, in storage.UploadInput) error {
	if in.Key == f.failOn {
		return errors.New("access denied")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return nil
}

func writeImages(t *testing.T, dir string, names ...string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for _, name := range names {
		format, err := imageproc.FormatFromPath(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := imageproc.Save(filepath.Join(dir, name), img, format, imageproc.EncodeOptions{Quality: 80}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPublish_UploadsImages(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, "a.jpg", "b.png", "c.webp")
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0644)

	up := &fakeUploader{}
	rep, err := Publish(context.Background(), up, dir, Options{
		Bucket:       "site-assets",
		Prefix:       "optimized-images/",
		CacheControl: "public, max-age=60",
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if len(up.inputs) != 3 {
		t.Fatalf("expected 3 uploads, got %d", len(up.inputs))
	}

	want := map[string]string{
		"optimized-images/a.jpg":  "image/jpeg",
		"optimized-images/b.png":  "image/png",
		"optimized-images/c.webp": "image/webp",
	}
	for i, in := range up.inputs {
		if ct, ok := want[in.Key]; !ok || ct != in.ContentType {
			t.Errorf("unexpected upload %s (%s)", in.Key, in.ContentType)
		}
		if in.Bucket != "site-assets" || in.CacheControl != "public, max-age=60" {
			t.Errorf("unexpected destination: %+v", in)
		}
		if len(up.bodies[i]) == 0 {
			t.Errorf("%s uploaded an empty body", in.Key)
		}
	}

	if succeeded, _ := rep.Counts(); succeeded != 3 {
		t.Errorf("expected 3 successes, got %d", succeeded)
	}
}

func TestPublish_StopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, "a.jpg", "b.jpg", "c.jpg")

	up := &fakeUploader{failOn: "a.jpg"}
	rep, err := Publish(context.Background(), up, dir, Options{Bucket: "b"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(up.inputs) != 0 {
		t.Errorf("expected no uploads after failure, got %d", len(up.inputs))
	}
	if _, failed := rep.Counts(); failed != 1 {
		t.Errorf("expected 1 failure recorded, got %d", failed)
	}
}

func TestPublish_FallsBackToExtensionType(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "hero.jpg"), []byte("not sniffable"), 0644)

	up := &fakeUploader{}
	if _, err := Publish(context.Background(), up, dir, Options{Bucket: "b"}); err != nil {
		t.Fatal(err)
	}
	if len(up.inputs) != 1 || up.inputs[0].ContentType != "image/jpeg" {
		t.Errorf("expected image/jpeg from the extension, got %+v", up.inputs)
	}
}

func TestPublish_RequiresBucket(t *testing.T) {
	if _, err := Publish(context.Background(), &fakeUploader{}, t.TempDir(), Options{}); err == nil {
		t.Error("expected error without bucket")
	}
}
