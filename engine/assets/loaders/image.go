package loaders

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/portalis/engine/renderer/metadata"
)

type ImageLoader struct{}

// Load decodes png, jpeg, bmp or webp files into RGBA8 pixels. params may
// be a *metadata.ImageResourceParams.
func (il *ImageLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open image `%s`", path)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode image `%s`", path)
	}

	flip := false
	if p, ok := params.(*metadata.ImageResourceParams); ok && p != nil {
		flip = p.FlipY
	}
	data := ToRGBA(img, flip)
	return &metadata.Resource{
		Name:     format,
		FullPath: path,
		Type:     metadata.ResourceTypeImage,
		DataSize: uint64(len(data.Pixels)),
		Data:     data,
	}, nil
}

// ToRGBA converts any image to tightly packed RGBA8 rows.
func ToRGBA(img image.Image, flipY bool) *metadata.ImageResourceData {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]uint8, 0, w*h*4)
	for y := 0; y < h; y++ {
		row := y
		if flipY {
			row = h - 1 - y
		}
		start := row * rgba.Stride
		pixels = append(pixels, rgba.Pix[start:start+w*4]...)
	}
	return &metadata.ImageResourceData{
		Width:  uint32(w),
		Height: uint32(h),
		Pixels: pixels,
	}
}
