package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/peterbourgon/ff/v4/ffyaml"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &config{}
	root := newRootCommand(cfg)

	if err := root.Parse(os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_EXTRACT"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parse),
		ff.WithConfigAllowMissingFile(),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(selected(root)))
		if errors.Is(err, ff.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if code := report(os.Stderr, root, root.Run(ctx)); code != 0 {
		stop()
		os.Exit(code)
	}
}

// report tells the user about a failed run and returns the exit status
func report(w io.Writer, root *ff.Command, err error) int {
	if err == nil {
		return 0
	}

	var pathErr *missingPathError
	switch {
	case errors.As(err, &pathErr):
		fmt.Fprintln(w, pathErr.Error())
	case errors.Is(err, errUsage):
		fmt.Fprintf(w, "%s\n", ffhelp.Command(selected(root)))
		fmt.Fprintf(w, "error: %v\n", err)
	default:
		slog.Error("Command failed", "error", err)
	}
	return 1
}

func selected(root *ff.Command) *ff.Command {
	if cmd := root.GetSelected(); cmd != nil {
		return cmd
	}
	return root
}
