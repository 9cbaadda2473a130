// drv_termbox.go uses the Termbox library to render the COUT trace
// into a terminal cell grid, which makes screen-oriented ProDOS
// programs much easier to watch than a raw byte stream.
//
// The portability of this solution is unknown, however the driver
// seems reasonable where a real terminal is present; when termbox
// cannot initialize we degrade to writing the raw stream instead.

package trace

import (
	"io"
	"os"

	"github.com/nsf/termbox-go"
)

// TermboxDriver renders characters into a termbox cell grid.
type TermboxDriver struct {

	// writer receives the raw stream when termbox is unavailable.
	writer io.Writer

	// active records whether termbox initialized successfully.
	active bool

	// x and y hold the cursor position within the cell grid.
	x int
	y int
}

// GetName returns the name of this driver.
//
// This is part of the Driver interface.
func (td *TermboxDriver) GetName() string {
	return "termbox"
}

// PutCharacter renders the specified character at the cursor position,
// handling newline and wrapping at the grid edge.
//
// This is part of the Driver interface.
func (td *TermboxDriver) PutCharacter(c uint8) {
	if !td.active {
		_, _ = td.writer.Write([]byte{c})
		return
	}

	w, h := termbox.Size()

	if c == '\n' {
		td.x = 0
		td.y++
	} else {
		termbox.SetCell(td.x, td.y, rune(c), termbox.ColorDefault, termbox.ColorDefault)
		td.x++
		if td.x >= w {
			td.x = 0
			td.y++
		}
	}

	// Scrolling is not modelled; wrap to the top instead.
	if td.y >= h {
		td.y = 0
	}

	termbox.SetCursor(td.x, td.y)
	_ = termbox.Flush()
}

// SetWriter will update the fallback writer.
func (td *TermboxDriver) SetWriter(w io.Writer) {
	td.writer = w
}

// Close shuts termbox down again, restoring the terminal.
func (td *TermboxDriver) Close() {
	if td.active {
		termbox.Close()
		td.active = false
	}
}

// init registers our driver, by name.
func init() {
	Register("termbox", func() Driver {
		td := &TermboxDriver{
			writer: os.Stdout,
		}
		if err := termbox.Init(); err == nil {
			td.active = true
		}
		return td
	})
}
