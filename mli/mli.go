// Package mli is the main package for the ProDOS side of the
// emulator: it implements the Machine Language Interface that ProDOS
// programs reach via JSR $BF00.
//
// The package mostly contains the implementation of the MLI calls
// that ProDOS programs would expect - along with a little machinery
// to decode parameter blocks from emulated memory and to map ProDOS
// volumes onto a directory of the host filesystem.
package mli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prodos8/prodosulator/memory"
)

// MLI call numbers.
const (
	CallAllocInterrupt   = uint8(0x40)
	CallDeallocInterrupt = uint8(0x41)
	CallReadBlock        = uint8(0x80)
	CallWriteBlock       = uint8(0x81)
	CallGetTime          = uint8(0x82)
	CallCreate           = uint8(0xC0)
	CallDestroy          = uint8(0xC1)
	CallRename           = uint8(0xC2)
	CallSetFileInfo      = uint8(0xC3)
	CallGetFileInfo      = uint8(0xC4)
	CallOnLine           = uint8(0xC5)
	CallSetPrefix        = uint8(0xC6)
	CallGetPrefix        = uint8(0xC7)
	CallOpen             = uint8(0xC8)
	CallNewline          = uint8(0xC9)
	CallRead             = uint8(0xCA)
	CallWrite            = uint8(0xCB)
	CallClose            = uint8(0xCC)
	CallFlush            = uint8(0xCD)
	CallSetMark          = uint8(0xCE)
	CallGetMark          = uint8(0xCF)
	CallSetEOF           = uint8(0xD0)
	CallGetEOF           = uint8(0xD1)
	CallSetBuf           = uint8(0xD2)
	CallGetBuf           = uint8(0xD3)
)

// maxRefNum is the number of open-file slots ProDOS provides.
const maxRefNum = 8

// maxInterruptSlots is the size of the interrupt-handler table.
const maxInterruptSlots = 4

// HandlerType contains the signature of an MLI call implementation.
type HandlerType func(ctx *Context, view *memory.Banks, paramAddr uint16) uint8

// Handler contains details of a specific call we implement.
//
// While we mostly need a "number to handler" mapping, having a name
// is useful for the logs we produce, and carrying the expected
// parameter count here lets the dispatcher validate it centrally.
type Handler struct {

	// Desc contains the human-readable name of the given MLI call.
	Desc string

	// ParamCount is the value the parameter-count byte must hold.
	ParamCount uint8

	// IgnoreCount marks GET_TIME, whose parameter list does not
	// exist and whose count byte is therefore never validated.
	IgnoreCount bool

	// Handler contains the function invoked for this call.
	Handler HandlerType
}

// OpenFile is one live entry in the open-file table, from OPEN until
// CLOSE.
type OpenFile struct {

	// file is the host file, or the directory pseudo-descriptor.
	file *os.File

	// mark is the current 24-bit file position.
	mark uint32

	// ioBuffer remembers the io_buffer pointer handed to OPEN, for
	// SET_BUF and GET_BUF.
	ioBuffer uint16

	// newlineEnabled, newlineMask and newlineChar hold the NEWLINE
	// read-termination state.
	newlineEnabled bool
	newlineMask    uint8
	newlineChar    uint8

	// isDirectory marks directory opens, which read from the
	// synthesized blocks below rather than from the host file.
	isDirectory bool

	// dirBlocks holds the ProDOS directory image, synthesized at
	// OPEN time, as a sequence of 512-byte blocks.
	dirBlocks []uint8
}

// Context is the object that holds the ProDOS machine state: the
// prefix, the volumes root, the open-file table, and the
// interrupt-handler table.
type Context struct {

	// prefix is the current ProDOS pathname prefix; initially empty.
	prefix string

	// volumesRoot is the host directory whose immediate child
	// directories are the online volumes.
	volumesRoot string

	// openFiles maps ref_num to its open file, at most eight live.
	openFiles map[uint8]*OpenFile

	// interruptSlots holds the four ALLOC_INTERRUPT routine
	// pointers; zero marks a free slot.
	interruptSlots [maxInterruptSlots]uint16

	// Calls contains the MLI calls we know how to emulate, indexed
	// by their number.
	Calls map[uint8]Handler

	// Logger holds a logger which we use for debugging and
	// diagnostics.
	Logger *slog.Logger
}

// New returns a context serving ProDOS volumes from beneath the given
// host directory.
func New(volumesRoot string, logger *slog.Logger) *Context {

	//
	// Create and populate the call table.
	//
	calls := make(map[uint8]Handler)
	calls[CallAllocInterrupt] = Handler{
		Desc:       "ALLOC_INTERRUPT",
		ParamCount: 2,
		Handler:    callAllocInterrupt,
	}
	calls[CallDeallocInterrupt] = Handler{
		Desc:       "DEALLOC_INTERRUPT",
		ParamCount: 1,
		Handler:    callDeallocInterrupt,
	}
	calls[CallReadBlock] = Handler{
		Desc:       "READ_BLOCK",
		ParamCount: 3,
		Handler:    callReadBlock,
	}
	calls[CallWriteBlock] = Handler{
		Desc:       "WRITE_BLOCK",
		ParamCount: 3,
		Handler:    callWriteBlock,
	}
	calls[CallGetTime] = Handler{
		Desc:        "GET_TIME",
		IgnoreCount: true,
		Handler:     callGetTime,
	}
	calls[CallCreate] = Handler{
		Desc:       "CREATE",
		ParamCount: 7,
		Handler:    callCreate,
	}
	calls[CallDestroy] = Handler{
		Desc:       "DESTROY",
		ParamCount: 1,
		Handler:    callDestroy,
	}
	calls[CallRename] = Handler{
		Desc:       "RENAME",
		ParamCount: 2,
		Handler:    callRename,
	}
	calls[CallSetFileInfo] = Handler{
		Desc:       "SET_FILE_INFO",
		ParamCount: 7,
		Handler:    callSetFileInfo,
	}
	calls[CallGetFileInfo] = Handler{
		Desc:       "GET_FILE_INFO",
		ParamCount: 10,
		Handler:    callGetFileInfo,
	}
	calls[CallOnLine] = Handler{
		Desc:       "ON_LINE",
		ParamCount: 2,
		Handler:    callOnLine,
	}
	calls[CallSetPrefix] = Handler{
		Desc:       "SET_PREFIX",
		ParamCount: 1,
		Handler:    callSetPrefix,
	}
	calls[CallGetPrefix] = Handler{
		Desc:       "GET_PREFIX",
		ParamCount: 1,
		Handler:    callGetPrefix,
	}
	calls[CallOpen] = Handler{
		Desc:       "OPEN",
		ParamCount: 3,
		Handler:    callOpen,
	}
	calls[CallNewline] = Handler{
		Desc:       "NEWLINE",
		ParamCount: 3,
		Handler:    callNewline,
	}
	calls[CallRead] = Handler{
		Desc:       "READ",
		ParamCount: 4,
		Handler:    callRead,
	}
	calls[CallWrite] = Handler{
		Desc:       "WRITE",
		ParamCount: 4,
		Handler:    callWrite,
	}
	calls[CallClose] = Handler{
		Desc:       "CLOSE",
		ParamCount: 1,
		Handler:    callClose,
	}
	calls[CallFlush] = Handler{
		Desc:       "FLUSH",
		ParamCount: 1,
		Handler:    callFlush,
	}
	calls[CallSetMark] = Handler{
		Desc:       "SET_MARK",
		ParamCount: 2,
		Handler:    callSetMark,
	}
	calls[CallGetMark] = Handler{
		Desc:       "GET_MARK",
		ParamCount: 2,
		Handler:    callGetMark,
	}
	calls[CallSetEOF] = Handler{
		Desc:       "SET_EOF",
		ParamCount: 2,
		Handler:    callSetEOF,
	}
	calls[CallGetEOF] = Handler{
		Desc:       "GET_EOF",
		ParamCount: 2,
		Handler:    callGetEOF,
	}
	calls[CallSetBuf] = Handler{
		Desc:       "SET_BUF",
		ParamCount: 2,
		Handler:    callSetBuf,
	}
	calls[CallGetBuf] = Handler{
		Desc:       "GET_BUF",
		ParamCount: 2,
		Handler:    callGetBuf,
	}

	return &Context{
		volumesRoot: volumesRoot,
		openFiles:   make(map[uint8]*OpenFile),
		Calls:       calls,
		Logger:      logger,
	}
}

// Close releases every open file; equivalent to CLOSE with ref_num 0.
func (ctx *Context) Close() {
	for _, of := range ctx.openFiles {
		of.file.Close()
	}
	ctx.openFiles = make(map[uint8]*OpenFile)
}

// Prefix returns the current pathname prefix.
func (ctx *Context) Prefix() string {
	return ctx.prefix
}

// VolumesRoot returns the host directory serving the volumes.
func (ctx *Context) VolumesRoot() string {
	return ctx.volumesRoot
}

// Dispatch decodes and executes one MLI call against the given
// writable view of emulated memory, returning the ProDOS error code.
//
// Every handler's parameter-count byte is validated here, before the
// handler runs; a mismatch beats any other validation.  GET_TIME has
// no parameter list and is exempt.
func (ctx *Context) Dispatch(view *memory.Banks, callNumber uint8, paramAddr uint16) uint8 {

	handler, exists := ctx.Calls[callNumber]
	if !exists {
		ctx.Logger.Warn("Unimplemented MLI call",
			slog.Int("call", int(callNumber)),
			slog.String("callHex", fmt.Sprintf("0x%02X", callNumber)))
		return BadCallNumber
	}

	ctx.Logger.Info("MLI call",
		slog.String("name", handler.Desc),
		slog.String("callHex", fmt.Sprintf("0x%02X", callNumber)),
		slog.String("param", fmt.Sprintf("0x%04X", paramAddr)))

	if !handler.IgnoreCount {
		if memory.ReadU8(view, paramAddr) != handler.ParamCount {
			ctx.Logger.Debug("MLI parameter count mismatch",
				slog.String("name", handler.Desc),
				slog.Int("expected", int(handler.ParamCount)),
				slog.Int("got", int(memory.ReadU8(view, paramAddr))))
			return BadCallParamCount
		}
	}

	err := handler.Handler(ctx, view, paramAddr)

	if err != NoError {
		ctx.Logger.Info("MLI error",
			slog.String("name", handler.Desc),
			slog.String("error", ErrorName(err)),
			slog.String("errorHex", fmt.Sprintf("0x%02X", err)))
	}

	return err
}

// liveFile looks a ref_num up in the open-file table.
func (ctx *Context) liveFile(refNum uint8) (*OpenFile, bool) {
	of, ok := ctx.openFiles[refNum]
	return of, ok
}
