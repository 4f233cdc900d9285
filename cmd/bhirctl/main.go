// Command bhirctl loads a declarative base/instruction program file,
// builds its dependency graph, and prints the schedule the runtime would
// execute — a minimal, runnable demonstration of the internal/dag core.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/specialistvlad/bhir/internal/cli"
	"github.com/specialistvlad/bhir/internal/ctxlog"
	"github.com/specialistvlad/bhir/internal/dag"
	"github.com/specialistvlad/bhir/internal/program"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(outW io.Writer, args []string) error {
	cfg, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := newLogger(cfg.LogFormat, cfg.LogLevel)
	batchID := uuid.New().String()
	logger = logger.With("batch_id", batchID)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	applyGraphDumpEnv(cfg)

	bases, instrs, err := program.Load(ctx, cfg.ProgramPath)
	if err != nil {
		return &cli.ExitError{Code: 1, Message: err.Error()}
	}
	logger.Info("program loaded", "bases", len(bases), "instructions", len(instrs))

	ir, err := dag.Create(instrs)
	if err != nil {
		return &cli.ExitError{Code: 1, Message: err.Error()}
	}
	defer ir.Destroy()

	if !cfg.DisableGraph {
		if err := ir.Build(); err != nil {
			return &cli.ExitError{Code: 1, Message: fmt.Sprintf("building dependency graph: %v", err)}
		}
		logger.Info("graph built", "nodes", ir.NodeCount())
	}

	it, err := dag.NewIterator(ir)
	if err != nil {
		return &cli.ExitError{Code: 1, Message: err.Error()}
	}
	defer it.Destroy()

	step := 0
	for {
		instr, err := it.NextInstruction()
		if errors.Is(err, dag.ErrEndOfStream) {
			break
		}
		if err != nil {
			return &cli.ExitError{Code: 1, Message: fmt.Sprintf("scheduling: %v", err)}
		}
		fmt.Fprintf(outW, "%3d  %s\n", step, instr.String())
		step++
	}

	logger.Info("schedule complete", "instructions", step)
	return nil
}

func applyGraphDumpEnv(cfg *cli.Config) {
	if cfg.PrintInstructionGraphDir != "" {
		os.Setenv("PRINT_INSTRUCTION_GRAPH", cfg.PrintInstructionGraphDir)
	}
	if cfg.PrintNodeInputGraphDir != "" {
		os.Setenv("PRINT_NODE_INPUT_GRAPH", cfg.PrintNodeInputGraphDir)
	}
	if cfg.PrintNodeOutputGraphDir != "" {
		os.Setenv("PRINT_NODE_OUTPUT_GRAPH", cfg.PrintNodeOutputGraphDir)
	}
	if cfg.DisableGraph {
		os.Setenv("DISABLE_BHIR_GRAPH", "1")
	}
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
