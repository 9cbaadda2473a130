// Package trace is an abstraction over the emulator's character-output
// trace surface.
//
// The CPU fires one character into the attached sink every time the
// running program jumps through the COUT vector.  Several drivers are
// available - a plain console writer, a termbox cell renderer, a null
// sink and a recording sink used by tests - and a factory can
// instantiate or change a driver given just a name.
package trace

import (
	"fmt"
	"io"
	"strings"
)

// Driver is the interface implemented by anything that wishes to be
// used as an output sink.
//
// Provided this interface is implemented an object may register
// itself, by name, via the Register method.
type Driver interface {

	// PutCharacter sends one character to the sink.
	PutCharacter(c uint8)

	// GetName returns the name of the driver.
	GetName() string

	// SetWriter updates the writer the driver outputs to.
	SetWriter(w io.Writer)
}

// Recorder is implemented by drivers which keep the characters they
// were given, so that tests can fetch the output.
type Recorder interface {

	// GetOutput returns the content which has been sunk so far.
	GetOutput() string

	// Reset removes any stored state.
	Reset()
}

// Constructor is the signature of a function which instantiates a
// driver.
type Constructor func() Driver

// handlers is the map of known drivers.
var handlers = struct {
	m map[string]Constructor
}{m: make(map[string]Constructor)}

// Register makes an output driver available, by name.
func Register(name string, obj Constructor) {
	name = strings.ToLower(name)

	handlers.m[name] = obj
}

// Output holds our state, which is just a pointer to the object
// handling the output.
type Output struct {

	// driver is the thing that actually sinks our characters.
	driver Driver
}

// New creates an output sink using the named driver.
func New(name string) (*Output, error) {
	name = strings.ToLower(name)

	ctor, ok := handlers.m[name]
	if !ok {
		return nil, fmt.Errorf("failed to lookup driver by name '%s'", name)
	}

	return &Output{driver: ctor()}, nil
}

// GetDriver allows getting our driver at runtime.
func (o *Output) GetDriver() Driver {
	return o.driver
}

// ChangeDriver allows changing our driver at runtime.
func (o *Output) ChangeDriver(name string) error {
	ctor, ok := handlers.m[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("failed to lookup driver by name '%s'", name)
	}

	o.driver = ctor()
	return nil
}

// GetName returns the name of the selected driver.
func (o *Output) GetName() string {
	return o.driver.GetName()
}

// GetDrivers returns all available driver names, hiding the internal
// "null" and "logger" drivers.
func (o *Output) GetDrivers() []string {
	valid := []string{}

	for x := range handlers.m {
		if x != "null" && x != "logger" {
			valid = append(valid, x)
		}
	}
	return valid
}

// PutCharacter sinks a character using the selected driver.
func (o *Output) PutCharacter(c uint8) {
	o.driver.PutCharacter(c)
}

// Escape converts one COUT character into its printable trace form:
// carriage return becomes a newline, printable ASCII passes through,
// common control bytes become C-style escapes, and everything else
// becomes a \xHH sequence.
func Escape(ch uint8) string {
	if ch == 0x0D {
		return "\n"
	}
	if ch >= 0x20 && ch <= 0x7E {
		return string(rune(ch))
	}

	switch ch {
	case 0x00:
		return "\\0"
	case 0x07:
		return "\\a"
	case 0x08:
		return "\\b"
	case 0x09:
		return "\\t"
	case 0x0A:
		return "\\n"
	case 0x0B:
		return "\\v"
	case 0x0C:
		return "\\f"
	case 0x1B:
		return "\\e"
	case 0x7F:
		return "\\x7f"
	default:
		return fmt.Sprintf("\\x%02x", ch)
	}
}
