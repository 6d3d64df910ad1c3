// Command transcorrect corrects ASR transcripts with an LLM, block by block,
// and maps the corrected text back onto the timed words of the transcript.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// .env is optional; values already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "transcorrect: load .env: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := newBuiltinRegistry()
	if err := newRootCmd(reg).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "transcorrect: %v\n", err)
		return 1
	}
	return 0
}
