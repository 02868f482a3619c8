package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"bankcap/internal/app"
	"bankcap/internal/config"
	"bankcap/internal/etl"
	"bankcap/internal/pipeline"
)

const usage = `Usage: bankcap <command> [flags]

Commands:
  run     execute the pipeline once and print the query results as JSON
  serve   start the HTTP API and the interval trigger
  version print the version

Flags:
  -config string   path to the YAML configuration file
`

// runOutput is what "bankcap run" prints
type runOutput struct {
	RunID       string            `json:"run_id"`
	Status      string            `json:"status"`
	FailedStage string            `json:"failed_stage,omitempty"`
	Error       string            `json:"error,omitempty"`
	Duration    string            `json:"duration"`
	Results     []etl.QueryResult `json:"results"`
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC RECOVERED: %v\n%s\n", r, debug.Stack())
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(execute(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs one command and returns the process exit code
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	command := args[0]
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to the YAML configuration file")

	switch command {
	case "run", "serve":
	case "version":
		fmt.Fprintf(stdout, "%s %s\n", config.AppName, config.AppVersion)
		return 0
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", command, usage)
		return 2
	}

	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	application, err := app.NewApplication(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), application.Config.Server.ShutdownTimeout+5*time.Second)
		defer cancel()
		if err := application.Close(closeCtx); err != nil {
			application.Logger.Error("Shutdown error", slog.String("error", err.Error()))
		}
	}()

	if command == "serve" {
		if err := application.Serve(ctx); err != nil {
			application.Logger.Error("Server error", slog.String("error", err.Error()))
			return 1
		}
		return 0
	}

	return runOnce(ctx, application, stdout)
}

func runOnce(ctx context.Context, application *app.Application, stdout io.Writer) int {
	record, runErr := application.Run(ctx)
	if record == nil || record.Run == nil {
		application.Logger.Error("Run did not start", slog.String("error", fmt.Sprint(runErr)))
		return 1
	}

	out := runOutput{
		RunID:       record.Run.ID,
		Status:      string(record.Run.Status),
		FailedStage: record.Run.FailedStage,
		Error:       record.Run.Error,
		Duration:    record.Run.Duration().Round(time.Millisecond).String(),
		Results:     record.Results,
	}
	if out.Results == nil {
		out.Results = []etl.QueryResult{}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		application.Logger.Error("Failed to write results", slog.String("error", err.Error()))
		return 1
	}

	if record.Run.Status != pipeline.RunStatusSucceeded {
		return 1
	}
	return 0
}
