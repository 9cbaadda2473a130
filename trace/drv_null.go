package trace

import (
	"io"
	"os"
)

// NullDriver discards everything it is given.
type NullDriver struct {

	// writer is where we would send our output.
	writer io.Writer
}

// GetName returns the name of this driver.
//
// This is part of the Driver interface.
func (nd *NullDriver) GetName() string {
	return "null"
}

// PutCharacter discards the specified character, as this is a
// null-driver.
//
// This is part of the Driver interface.
func (nd *NullDriver) PutCharacter(c uint8) {
}

// SetWriter will update the writer.
func (nd *NullDriver) SetWriter(w io.Writer) {
	nd.writer = w
}

// init registers our driver, by name.
func init() {
	Register("null", func() Driver {
		return &NullDriver{
			writer: os.Stdout,
		}
	})
}
