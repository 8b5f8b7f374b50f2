package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestNormalizeJPEG(t *testing.T) {
	var buf bytes.Buffer
	jpeg.Encode(&buf, solid(120, 80, color.RGBA{255, 0, 0, 255}), &jpeg.Options{Quality: 90})

	p, err := Normalize(&buf)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", p.MIME)
	}
	if p.Width != 120 || p.Height != 80 {
		t.Errorf("expected 120x80 kept, got %dx%d", p.Width, p.Height)
	}
}

func TestNormalizePNGBecomesJPEG(t *testing.T) {
	p, err := Normalize(bytes.NewReader(encodePNG(t, solid(50, 50, color.RGBA{0, 0, 255, 255}))))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(p.Data)); err != nil {
		t.Errorf("expected decodable JPEG output: %v", err)
	}
}

func TestNormalizeTransparentFlattensToWhite(t *testing.T) {
	p, err := Normalize(bytes.NewReader(encodePNG(t, solid(10, 10, color.RGBA{0, 0, 0, 0}))))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(p.Data))
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := img.At(5, 5).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Errorf("expected white pixel, got %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestNormalizeDownscales(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"wide", 3200, 1600, MaxDimension, 800},
		{"tall", 800, 3200, 400, MaxDimension},
		{"square", 2000, 2000, MaxDimension, MaxDimension},
		{"small", 300, 200, 300, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodePNG(t, solid(tt.w, tt.h, color.RGBA{10, 200, 10, 255}))
			p, err := Normalize(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if p.Width != tt.wantW || p.Height != tt.wantH {
				t.Errorf("expected %dx%d, got %dx%d", tt.wantW, tt.wantH, p.Width, p.Height)
			}
		})
	}
}

func TestNormalizeRejectsNonImage(t *testing.T) {
	_, err := Normalize(bytes.NewReader([]byte("%PDF-1.4 not an image")))
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestNormalizeRejectsOversize(t *testing.T) {
	data := make([]byte, MaxUploadBytes+10)
	copy(data, []byte{0xff, 0xd8, 0xff})
	_, err := Normalize(bytes.NewReader(data))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}
