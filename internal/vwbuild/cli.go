package vwbuild

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gookit/color"
	"golang.org/x/term"
)

// Main is the CLI entrypoint for cmd/vwbuild.
func Main() {
	// 1. CONTEXT AND SIGNAL SETUP
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	// Interrupting mid-stage leaves host state (installed packages, apt
	// configuration, partial target dir) as the interrupted tool left it;
	// no cleanup is attempted here.
	go func() {
		for {
			select {
			case sig := <-sigs:
				colArrow.Print("\n-> ")
				color.Danger.Printf("Received %v. Cancelling process gracefully\n", sig)
				cancel()

				time.Sleep(100 * time.Millisecond)
				select {
				case <-sigs:
					colArrow.Print("\n-> ")
					color.Danger.Printf("Second interrupt received. Forcing immediate exit.")
					os.Exit(130)
				case <-time.After(2 * time.Second):
					colArrow.Print("\n-> ")
					color.Danger.Printf("Graceful shutdown timeout. Exiting.")
					os.Exit(130)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Disable colored output when not attached to a terminal.
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.Disable()
	}

	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("vwbuild %s (built %s)\n", version, buildDate)
		return
	}

	// 2. CONFIG LAYER
	configPath := ConfigFile
	if root := os.Getenv("VWBUILD_ROOT"); root != "" {
		configPath = filepath.Join(root, "etc", "vwbuild.conf")
	}
	conf, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to read %s: %v\n", configPath, err)
	}
	initConfig(conf)

	// 3. FLAG RESOLUTION
	cfg, err := resolveArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, errHelpRequested) {
			printUsage(os.Stdout)
			return
		}
		if errors.Is(err, errVersionRequested) {
			fmt.Printf("vwbuild %s (built %s)\n", version, buildDate)
			return
		}
		cPrintln(os.Stderr, colError, err.Error())
		printUsage(os.Stderr)
		os.Exit(2)
	}

	workDir, err := os.Getwd()
	if err != nil {
		cPrintf(os.Stderr, colError, "cannot determine working directory: %v\n", err)
		os.Exit(1)
	}

	// 4. PIPELINE EXECUTION
	UserExec = NewExecutor(ctx)
	RootExec = &Executor{Context: ctx, ShouldRunAsRoot: true}

	pipe := &Pipeline{
		Cfg:     cfg,
		Conf:    conf,
		WorkDir: workDir,
		User:    UserExec,
		Root:    RootExec,
		Logger:  os.Stdout,
	}

	archivePath, err := pipe.Run(ctx)
	if err != nil {
		cPrintf(os.Stderr, colArrow, "-> ")
		cPrintln(os.Stderr, colError, err.Error())
		os.Exit(1)
	}

	colArrow.Print("-> ")
	colSuccess.Print("Package ready:")
	colNote.Printf(" %s\n", archivePath)
}
