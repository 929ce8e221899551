/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package thumbs turns cover pages into small JPEG thumbnails and fills them
// in the background for the slots the grid engine realizes.
package thumbs

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultWidth is the thumbnail width when none is configured.
const DefaultWidth = 320

// placeholderAspect is height over width of a typical manga page.
const placeholderAspect = 1.42

// ErrDecode is returned when the cover bytes are not a supported image.
var ErrDecode = errors.New("decode cover")

// Quality is the JPEG quality of generated thumbnails.
var Quality = 85

// Generate decodes an image and returns a JPEG scaled down to width, keeping
// the aspect ratio. Images narrower than width are not upscaled.
func Generate(data []byte, width int) ([]byte, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	sb := src.Bounds()
	if sb.Dx() <= 0 || sb.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	w := min(width, sb.Dx())
	h := max(1, sb.Dy()*w/sb.Dx())

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha; flatten onto white
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	return encode(dst)
}

// Placeholder returns a plain grey cover for books whose pages cannot be
// rendered.
func Placeholder(width int) []byte {
	if width <= 0 {
		width = DefaultWidth
	}
	h := int(math.Round(float64(width) * placeholderAspect))
	img := image.NewRGBA(image.Rect(0, 0, width, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 0x55, G: 0x55, B: 0x5a, A: 0xff}), image.Point{}, draw.Src)
	b, err := encode(img)
	if err != nil {
		// encoding an in-memory RGBA cannot fail
		panic(err)
	}
	return b
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
