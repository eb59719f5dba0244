package dataset

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/banshee-data/visual-odometry/internal/odometry"
)

// FrameChannels is the channel count of every decoded frame. Grayscale and
// paletted images are expanded to three channels.
const FrameChannels = 3

// DecodeFrame decodes an encoded image into a rows x cols x 3 tensor in
// blue, green, red channel order with 8-bit intensity values. The tensor is
// not normalised.
func DecodeFrame(data []byte) (odometry.Tensor, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return odometry.Tensor{}, "", fmt.Errorf("failed to decode image: %w", err)
	}
	t, err := ImageTensor(img)
	if err != nil {
		return odometry.Tensor{}, "", err
	}
	return t, format, nil
}

// ImageTensor converts img to a BGR tensor with values in [0, 255]. An
// empty image is a shape mismatch.
func ImageTensor(img image.Image) (odometry.Tensor, error) {
	b := img.Bounds()
	data := make([]float64, 0, b.Dx()*b.Dy()*FrameChannels)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			data = append(data, float64(bl>>8), float64(g>>8), float64(r>>8))
		}
	}
	return odometry.TensorFromData(b.Dy(), b.Dx(), FrameChannels, data)
}
