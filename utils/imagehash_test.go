package utils

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
)

// gradientImage renders a horizontal luminance ramp; half the pixels land on
// each side of the mean, which exercises both hash bit values.
func gradientImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / (w - 1))
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func checkerImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if (x/8+y/8)%2 == 0 {
				v = 255
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestHashDecodedImageShapeAndDeterminism(t *testing.T) {
	img := gradientImage(128, 96)

	hash := HashDecodedImage(img)
	if len(hash) != 64 {
		t.Fatalf("hash length = %d, want 64", len(hash))
	}
	for _, r := range hash {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			t.Fatalf("hash contains non-hex rune %q", r)
		}
	}
	if again := HashDecodedImage(img); again != hash {
		t.Fatalf("hash not deterministic: %s vs %s", hash, again)
	}
}

func TestHashDistinguishesImages(t *testing.T) {
	a := HashDecodedImage(gradientImage(128, 96))
	b := HashDecodedImage(checkerImage(128, 96))
	if a == b {
		t.Fatalf("distinct images hashed identically: %s", a)
	}
}

func TestHashImageRejectsGarbage(t *testing.T) {
	if _, err := HashImage([]byte("not an image")); err == nil {
		t.Fatal("garbage bytes accepted")
	}
}

func TestHashImageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, gradientImage(128, 96), imaging.PNG); err != nil {
		t.Fatalf("encode: %v", err)
	}

	fromBytes, err := HashImage(buf.Bytes())
	if err != nil {
		t.Fatalf("HashImage: %v", err)
	}
	if direct := HashDecodedImage(gradientImage(128, 96)); fromBytes != direct {
		t.Fatalf("encoded round trip changed hash: %s vs %s", fromBytes, direct)
	}
}
