package scenes

import (
	"fmt"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/skip2/go-qrcode"
)

// qrBitmap 生成内容的二维码点阵（含静区），true 为黑块
func qrBitmap(content string) ([][]bool, error) {
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr %q: %w", content, err)
	}
	return q.Bitmap(), nil
}

// qrRaster 把点阵放大为 RGBA 图像，每个模块 scale×scale 像素
func qrRaster(bitmap [][]bool, scale int) *image.RGBA {
	if scale < 1 {
		scale = 1
	}
	size := len(bitmap) * scale
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y, row := range bitmap {
		for x, dark := range row {
			c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
			if dark {
				c = color.RGBA{A: 255}
			}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetRGBA(x*scale+dx, y*scale+dy, c)
				}
			}
		}
	}
	return img
}

// NewQRImage 生成可直接绘制的二维码图像
func NewQRImage(content string, scale int) (*ebiten.Image, error) {
	bitmap, err := qrBitmap(content)
	if err != nil {
		return nil, err
	}
	return ebiten.NewImageFromImage(qrRaster(bitmap, scale)), nil
}
