package half

import (
	"strings"
	"sync"

	"github.com/golang/glog"
)

// Display receives pixel rows written by the host. One write carries two
// consecutive pixel rows starting at row.
type Display interface {
	WriteRow(row uint8, data0, data1 [4]byte)
}

// Display geometry of one half, in pixels. A row is packed LSB first.
const (
	DisplayWidth  = 32
	DisplayHeight = 128
)

// Framebuffer is an in-memory 1bpp Display.
type Framebuffer struct {
	rows [][DisplayWidth / 8]byte
	lock sync.RWMutex
}

// NewFramebuffer creates a Framebuffer of DisplayHeight rows.
func NewFramebuffer() *Framebuffer {
	return &Framebuffer{rows: make([][DisplayWidth / 8]byte, DisplayHeight)}
}

// WriteRow implements Display. Rows out of range are ignored.
func (f *Framebuffer) WriteRow(row uint8, data0, data1 [4]byte) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if int(row) >= len(f.rows) {
		glog.Warningf("display row %d out of range", row)
		return
	}
	f.rows[row] = data0
	if int(row)+1 < len(f.rows) {
		f.rows[row+1] = data1
	}
}

// Row returns the content of a pixel row.
func (f *Framebuffer) Row(row int) (data [DisplayWidth / 8]byte) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	if row >= 0 && row < len(f.rows) {
		data = f.rows[row]
	}
	return
}

// Pixel reports whether the pixel at x, y is lit.
func (f *Framebuffer) Pixel(x, y int) bool {
	row := f.Row(y)
	if x < 0 || x >= DisplayWidth {
		return false
	}
	return row[x/8]&(1<<uint(x%8)) != 0
}

// String renders the framebuffer, one line per pixel row.
func (f *Framebuffer) String() string {
	f.lock.RLock()
	defer f.lock.RUnlock()
	var sb strings.Builder
	for _, row := range f.rows {
		for x := 0; x < DisplayWidth; x++ {
			if row[x/8]&(1<<uint(x%8)) != 0 {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
