package utils

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

const hashBlockSize = 16

// HashImage computes the product fingerprint for a photo: the image is
// reduced to a 16x16 grayscale block, each pixel is thresholded against the
// block mean, and the resulting 256-bit string is hex-packed. The output is
// a fixed 64-character hex string regardless of input dimensions.
//
// This is an exact-match fingerprint, not a similarity metric: two photos
// hash identically only when their downsampled luminance patterns match
// pixel for pixel.
func HashImage(imageBytes []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return "", &ValidationError{Field: "image", Reason: "undecodable image data"}
	}
	return HashDecodedImage(img), nil
}

// HashDecodedImage hashes an already-decoded image. Split out so upload
// handlers that decode for thumbnailing anyway don't decode twice.
func HashDecodedImage(img image.Image) string {
	small := imaging.Grayscale(imaging.Resize(img, hashBlockSize, hashBlockSize, imaging.Lanczos))

	var pixels [hashBlockSize * hashBlockSize]uint8
	var sum uint64
	i := 0
	for y := 0; y < hashBlockSize; y++ {
		for x := 0; x < hashBlockSize; x++ {
			// Grayscale output is NRGBA with R=G=B.
			c := small.NRGBAAt(x, y)
			pixels[i] = c.R
			sum += uint64(c.R)
			i++
		}
	}
	mean := uint8(sum / uint64(len(pixels)))

	const hexDigits = "0123456789abcdef"
	var out []byte
	var nibble uint8
	for i, p := range pixels {
		nibble <<= 1
		if p >= mean {
			nibble |= 1
		}
		if i%4 == 3 {
			out = append(out, hexDigits[nibble&0x0f])
			nibble = 0
		}
	}
	return string(out)
}
