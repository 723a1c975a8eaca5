package classifier

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"plantcare/internal/models"
)

// InputSize is the square edge, in pixels, the model expects.
const InputSize = 224

// Tensor is one HxWx3 image scaled to [-1, 1].
type Tensor [][][3]float32

// Preprocess decodes an image, resizes it bilinearly to InputSize and scales
// every RGB channel from [0, 255] to [-1, 1].
func Preprocess(data []byte) (Tensor, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &models.ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("could not decode image: %v", err),
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, InputSize, InputSize))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	t := make(Tensor, InputSize)
	for y := 0; y < InputSize; y++ {
		row := make([][3]float32, InputSize)
		for x := 0; x < InputSize; x++ {
			off := dst.PixOffset(x, y)
			px := dst.Pix[off : off+3 : off+3]
			row[x] = [3]float32{scale(px[0]), scale(px[1]), scale(px[2])}
		}
		t[y] = row
	}
	return t, nil
}

func scale(v uint8) float32 {
	return float32(v)/127.5 - 1
}
