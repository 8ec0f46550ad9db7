package security

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
)

// Validator guards the fetcher against hostile or oversized inputs:
// output names that escape the target directory, oversized downloads and
// decompression bombs.
type Validator struct {
	maxFileSize  int64
	maxTotalSize int64
	maxPixels    int64

	mu               sync.Mutex
	currentTotalSize int64
}

// NewValidator creates a new security validator
func NewValidator(maxFileSize, maxTotalSize, maxPixels int64) *Validator {
	slog.Info("security_validator_init",
		"max_file_size_mb", maxFileSize/1024/1024,
		"max_total_size_mb", maxTotalSize/1024/1024,
		"max_megapixels", maxPixels/1_000_000)

	return &Validator{
		maxFileSize:  maxFileSize,
		maxTotalSize: maxTotalSize,
		maxPixels:    maxPixels,
	}
}

// ValidateFilename checks that name is a bare file name that stays inside
// the output directory once joined to it.
func (v *Validator) ValidateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("security: empty file name")
	}

	if filepath.IsAbs(name) {
		slog.Error("security_filename_validation_failed", "filename", name, "reason", "absolute_path")
		return fmt.Errorf("security: absolute path not allowed: %s", name)
	}

	if strings.ContainsAny(name, `/\`) {
		slog.Error("security_filename_validation_failed", "filename", name, "reason", "path_separator")
		return fmt.Errorf("security: file name must not contain path separators: %s", name)
	}

	if name == "." || name == ".." {
		slog.Error("security_filename_validation_failed", "filename", name, "reason", "path_traversal")
		return fmt.Errorf("security: path traversal detected: %s", name)
	}

	return nil
}

// MaxFileSize is the per-payload byte limit retrievers should enforce
// while reading.
func (v *Validator) MaxFileSize() int64 {
	return v.maxFileSize
}

// ValidateFileSize checks if a payload exceeds max file size
func (v *Validator) ValidateFileSize(size int64) error {
	if size > v.maxFileSize {
		slog.Error("security_file_size_exceeded",
			"file_size_mb", size/1024/1024,
			"max_file_size_mb", v.maxFileSize/1024/1024)
		return fmt.Errorf("security: file size %d exceeds max %d", size, v.maxFileSize)
	}
	return nil
}

// AddFetchedSize tracks the bytes retrieved during a run and checks them
// against the run-wide limit. Safe for concurrent use.
func (v *Validator) AddFetchedSize(size int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.currentTotalSize += size

	if v.currentTotalSize > v.maxTotalSize {
		slog.Error("security_total_size_exceeded",
			"current_total_mb", v.currentTotalSize/1024/1024,
			"max_total_mb", v.maxTotalSize/1024/1024,
			"file_size_mb", size/1024/1024)
		return fmt.Errorf("security: total fetched size %d exceeds max %d",
			v.currentTotalSize, v.maxTotalSize)
	}

	return nil
}

// ValidateDimensions rejects images whose decoded pixel count would exceed
// the configured limit. It runs on the header alone, before decoding.
func (v *Validator) ValidateDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		slog.Error("security_dimensions_invalid", "width", width, "height", height)
		return fmt.Errorf("security: invalid image dimensions %dx%d", width, height)
	}

	pixels := int64(width) * int64(height)
	if pixels > v.maxPixels {
		slog.Error("security_decompression_bomb_detected",
			"width", width,
			"height", height,
			"max_pixels", v.maxPixels)
		return fmt.Errorf("security: image %dx%d exceeds max %d pixels", width, height, v.maxPixels)
	}

	return nil
}

// Reset resets the total size counter
func (v *Validator) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.currentTotalSize = 0
}

// CurrentTotalSize returns the bytes fetched since the last Reset.
func (v *Validator) CurrentTotalSize() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.currentTotalSize
}
