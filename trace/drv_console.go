package trace

import (
	"io"
	"os"
)

// ConsoleDriver writes the trace straight to the console.
type ConsoleDriver struct {

	// writer is where we send our output.
	writer io.Writer
}

// GetName returns the name of this driver.
//
// This is part of the Driver interface.
func (cd *ConsoleDriver) GetName() string {
	return "console"
}

// PutCharacter writes the specified character to our writer.
//
// This is part of the Driver interface.
func (cd *ConsoleDriver) PutCharacter(c uint8) {
	_, _ = cd.writer.Write([]byte{c})
}

// SetWriter will update the writer.
func (cd *ConsoleDriver) SetWriter(w io.Writer) {
	cd.writer = w
}

// init registers our driver, by name.
func init() {
	Register("console", func() Driver {
		return &ConsoleDriver{
			writer: os.Stdout,
		}
	})
}
