package fireengine

import (
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
)

func (e *Engine) captureFrame(img *image.RGBA, step int) {
	if e.FrameCaptureDir == "" {
		return
	}
	if err := os.MkdirAll(e.FrameCaptureDir, 0o755); err != nil {
		log.Printf("[capture] Error creating capture directory: %v", err)
		return
	}

	path := filepath.Join(e.FrameCaptureDir, captureName(step))
	// The canvas is reused by the next frame.
	snapshot := image.NewRGBA(img.Rect)
	copy(snapshot.Pix, img.Pix)

	go func() {
		if err := writePNG(path, snapshot); err != nil {
			log.Printf("[capture] %v", err)
			return
		}
		log.Printf("[capture] Captured frame: %s", path)
	}()
}

func captureName(step int) string {
	return fmt.Sprintf("fire-step-%05d.png", step)
}

func writePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating capture file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing capture file: %w", cerr)
		}
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding capture: %w", err)
	}
	return nil
}
