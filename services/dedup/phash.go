package dedup

import (
	"bytes"
	"fmt"
	"image"
	"math/bits"
	"strconv"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const hashSide = 8

// AverageHash computes the 64-bit grayscale average hash of an image: the
// image is down-sampled to an 8x8 grid and each bit records whether the
// cell is brighter than the grid mean. Visually similar images yield
// hashes with small Hamming distance; the hash degrades gracefully under
// resizing and recompression.
func AverageHash(img image.Image) uint64 {
	small := image.NewGray(image.Rect(0, 0, hashSide, hashSide))
	draw.BiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var sum uint32
	for _, px := range small.Pix {
		sum += uint32(px)
	}
	mean := uint8(sum / (hashSide * hashSide))

	var hash uint64
	for i, px := range small.Pix {
		if px > mean {
			hash |= 1 << uint(63-i)
		}
	}
	return hash
}

// HashImage decodes the image bytes and returns its average hash together
// with the pixel dimensions.
func HashImage(data []byte) (hash uint64, width, height int, err error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	return AverageHash(img), b.Dx(), b.Dy(), nil
}

// HammingDistance counts differing bits between two hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// EncodeHash renders a hash as a fixed-width hex string for storage.
func EncodeHash(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

func DecodeHash(s string) (uint64, error) {
	return strconv.ParseUint(s, 16, 64)
}
