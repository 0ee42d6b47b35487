// Package render turns images into the pixel rows both halves display.
package render

import (
	"context"
	"image"
	"image/color"
	"image/gif"
	"time"

	"github.com/golang/glog"
	"golang.org/x/image/draw"

	"github.com/robotalks/splitkb/pkg/half"
	"github.com/robotalks/splitkb/pkg/messages"
)

// Size of the image covering both displays. The left half is x < 32.
const (
	Width  = 2 * half.DisplayWidth
	Height = half.DisplayHeight
)

var bilevel = color.Palette{color.Black, color.White}

// Dither scales img to Width x Height and reduces it to two levels.
func Dither(img image.Image) *image.Paletted {
	scaled := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)
	out := image.NewPaletted(scaled.Bounds(), bilevel)
	draw.FloydSteinberg.Draw(out, out.Bounds(), scaled, image.Point{})
	return out
}

// Rows packs a dithered image into WritePixels commands, left and right
// interleaved. Each command carries two pixel rows.
func Rows(img *image.Paletted) []messages.HostWritePixels {
	var sides [2][Height][half.DisplayWidth / 8]byte
	b := img.Bounds()
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			if img.ColorIndexAt(b.Min.X+x, b.Min.Y+y) == 0 {
				continue
			}
			side, col := 0, x
			if x >= half.DisplayWidth {
				side, col = 1, x-half.DisplayWidth
			}
			sides[side][y][col/8] |= 1 << uint(col%8)
		}
	}
	out := make([]messages.HostWritePixels, 0, Height)
	for row := 0; row < Height; row += 2 {
		for side := range sides {
			out = append(out, messages.HostWritePixels{
				Side:  messages.Side(side),
				Row:   uint8(row),
				Data0: sides[side][row],
				Data1: sides[side][row+1],
			})
		}
	}
	return out
}

// Frame is Rows of the dithered img.
func Frame(img image.Image) []messages.HostWritePixels {
	return Rows(Dither(img))
}

// SendFunc delivers one command to the keyboard.
type SendFunc func(ctx context.Context, msg messages.HostWritePixels) error

// Player shows an animation frame by frame.
type Player struct {
	Send SendFunc
	Loop bool
}

// Play sends each frame of anim and waits for its delay. It returns when
// the animation ends without Loop, on a send error or when ctx is done.
func (p *Player) Play(ctx context.Context, anim *gif.GIF) error {
	frames := make([][]messages.HostWritePixels, len(anim.Image))
	canvas := image.NewRGBA(image.Rect(0, 0, anim.Config.Width, anim.Config.Height))
	for n, img := range anim.Image {
		draw.Draw(canvas, img.Bounds(), img, img.Bounds().Min, draw.Over)
		frames[n] = Frame(canvas)
	}
	for {
		for n, rows := range frames {
			if err := ctx.Err(); err != nil {
				return err
			}
			next := time.Now().Add(frameDelay(anim, n))
			for _, msg := range rows {
				if err := p.Send(ctx, msg); err != nil {
					return err
				}
			}
			glog.V(2).Infof("frame %d sent", n)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Until(next)):
			}
		}
		if !p.Loop {
			return nil
		}
	}
}

// frameDelay converts the GIF delay in 1/100s, zero means as fast as
// possible.
func frameDelay(anim *gif.GIF, n int) time.Duration {
	if n >= len(anim.Delay) {
		return 0
	}
	return time.Duration(anim.Delay[n]) * 10 * time.Millisecond
}
