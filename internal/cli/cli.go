package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// ExitError is an error that also carries the process exit code main should
// use when reporting it.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Config is the fully validated set of options a bhirctl invocation runs
// with.
type Config struct {
	ProgramPath string

	LogFormat string
	LogLevel  string

	PrintInstructionGraphDir string
	PrintNodeInputGraphDir   string
	PrintNodeOutputGraphDir  string
	DisableGraph             bool
}

// Parse processes command-line arguments into a Config, or returns
// shouldExit=true for a clean --help exit, or an *ExitError for invalid
// input.
func Parse(args []string, output io.Writer) (*Config, bool, error) {
	flagSet := flag.NewFlagSet("bhirctl", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
bhirctl - loads a declarative base/instruction program and schedules it.

Usage:
  bhirctl [options] PROGRAM_PATH

Arguments:
  PROGRAM_PATH
    Path to a .hcl program file declaring base arrays and instructions.

Options:
`)
		flagSet.PrintDefaults()
	}

	programFlag := flagSet.String("program", "", "Path to the program file (shorthand for the positional argument).")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Logging level. Options: 'debug', 'info', 'warn', 'error'.")
	printInstrGraphFlag := flagSet.String("print-instruction-graph", "", "Directory to write a DOT dump of the raw instruction stream into.")
	printNodeInGraphFlag := flagSet.String("print-node-input-graph", "", "Directory to write a DOT dump of the built dependency graph into.")
	printNodeOutGraphFlag := flagSet.String("print-node-output-graph", "", "Directory to write a DOT dump of the graph as the scheduler sees it into.")
	disableGraphFlag := flagSet.Bool("disable-graph", false, "Skip graph construction; schedule instructions in file order.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := *programFlag
	if path == "" && flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	return &Config{
		ProgramPath:              path,
		LogFormat:                logFormat,
		LogLevel:                 logLevel,
		PrintInstructionGraphDir: *printInstrGraphFlag,
		PrintNodeInputGraphDir:   *printNodeInGraphFlag,
		PrintNodeOutputGraphDir:  *printNodeOutGraphFlag,
		DisableGraph:             *disableGraphFlag,
	}, false, nil
}
