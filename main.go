// Package main is the command-line entry point to prodosulator: it
// loads a ROM image and a ProDOS 8 system file into the emulated
// Apple II, wires the MLI onto a host directory of volumes, and runs
// the 65C02 until the program stops.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/prodos8/prodosulator/cpu"
	"github.com/prodos8/prodosulator/loader"
	"github.com/prodos8/prodosulator/memory"
	"github.com/prodos8/prodosulator/mli"
	"github.com/prodos8/prodosulator/trace"
	"github.com/prodos8/prodosulator/version"
)

// runChunk is how many instructions we execute between liveness
// checks when no instruction limit was given.
const runChunk = 1_000_000

func main() {

	coutDriver := flag.String("cout", "console", "name of the COUT trace driver to use")
	loadAddress := flag.Uint("load-address", uint(loader.DefaultLoadAddress), "address the system file is loaded at")
	maxInstructions := flag.Int64("max-instructions", -1, "stop execution after this many instructions")
	showVersion := flag.Bool("version", false, "show our version and exit")
	volumeRoot := flag.String("volume-root", ".", "host directory holding the ProDOS volumes")
	flag.Parse()

	if *showVersion {
		fmt.Print(version.GetVersionBanner())
		return
	}

	if flag.NArg() < 2 {
		fmt.Printf("Usage: prodosulator [options] ROM_PATH SYSTEM_FILE_PATH\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Setup our logging level - default to warnings or higher,
	// but show everything if $DEBUG is non-empty.
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	if os.Getenv("DEBUG") != "" {
		lvl.Set(slog.LevelDebug)
	}

	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	}))

	if *loadAddress >= 0xC000 {
		fmt.Printf("Load address $%04X is not below $C000\n", *loadAddress)
		os.Exit(1)
	}
	entry := uint16(*loadAddress)

	// The termbox renderer takes over the terminal; refuse it when
	// stdout is not one.
	driver := *coutDriver
	if driver == "termbox" && !term.IsTerminal(int(os.Stdout.Fd())) {
		log.Warn("stdout is not a terminal, using the console driver")
		driver = "console"
	}

	cout, err := trace.New(driver)
	if err != nil {
		fmt.Printf("Failed to create COUT driver: %s\n", err)
		os.Exit(1)
	}

	mem := memory.New()

	if err := loader.LoadROM(mem, flag.Arg(0)); err != nil {
		fmt.Printf("Error loading ROM: %s\n", err)
		os.Exit(1)
	}
	if err := loader.LoadSystemFile(mem, flag.Arg(1), entry); err != nil {
		fmt.Printf("Error loading system file: %s\n", err)
		os.Exit(1)
	}
	loader.InitWarmStart(mem, entry)

	ctx := mli.New(*volumeRoot, log)
	defer ctx.Close()

	c := cpu.New(mem)
	c.AttachMLI(ctx)
	c.AttachCout(cout)

	c.Reset()
	c.PC = entry

	if *maxInstructions >= 0 {
		c.Run(uint64(*maxInstructions))
	} else {
		for !c.Stopped() && !c.Waiting() {
			c.Run(runChunk)
		}
	}

	if td, ok := cout.GetDriver().(*trace.TermboxDriver); ok {
		td.Close()
	}

	log.Debug("execution finished",
		slog.Uint64("instructions", c.InstructionCount),
		slog.Bool("stopped", c.Stopped()),
		slog.Bool("waiting", c.Waiting()))
}
