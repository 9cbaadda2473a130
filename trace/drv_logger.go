package trace

import (
	"io"
	"os"
	"strings"
)

// LoggingDriver stores everything it is given, for later retrieval.
// It is used by the integration tests.
type LoggingDriver struct {

	// writer is where we would send our output.
	writer io.Writer

	// history stores the characters we've seen.
	history strings.Builder
}

// GetName returns the name of this driver.
//
// This is part of the Driver interface.
func (ld *LoggingDriver) GetName() string {
	return "logger"
}

// PutCharacter saves the specified character into our history, as this
// is a recording driver nothing is written anywhere else.
//
// This is part of the Driver interface.
func (ld *LoggingDriver) PutCharacter(c uint8) {
	ld.history.WriteByte(c)
}

// SetWriter will update the writer.
func (ld *LoggingDriver) SetWriter(w io.Writer) {
	ld.writer = w
}

// GetOutput returns our history.
//
// This is part of the Recorder interface.
func (ld *LoggingDriver) GetOutput() string {
	return ld.history.String()
}

// Reset removes any stored state.
//
// This is part of the Recorder interface.
func (ld *LoggingDriver) Reset() {
	ld.history.Reset()
}

// init registers our driver, by name.
func init() {
	Register("logger", func() Driver {
		return &LoggingDriver{
			writer: os.Stdout,
		}
	})
}
