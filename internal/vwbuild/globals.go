package vwbuild

import (
	"errors"

	"github.com/gookit/color"
)

const (
	// appName is the executable produced by the delegated cargo build.
	appName = "vaultwarden"
	// pinningFile declares the required toolchain channel in the working directory.
	pinningFile = "rust-toolchain.toml"
)

// Global variables
var (
	Debug      bool
	ConfigFile = "/etc/vwbuild.conf"
	version    = "dev"     // overridden at build time
	buildDate  = "unknown" // overridden at build time

	// apt paths, overridable for tests against a scratch root
	aptSourcesList = "/etc/apt/sources.list"
	aptConfSnippet = "/etc/apt/apt.conf.d/99vwbuild-archive"

	// Global executors (assigned in Main)
	UserExec *Executor
	RootExec *Executor
)

// Error taxonomy. Everything except the privilege warning path is fatal.
var (
	errConfiguration   = errors.New("configuration error")
	errEnvironment     = errors.New("environment error")
	errExternalTool    = errors.New("external tool failure")
	errArtifactMissing = errors.New("artifact missing")
)

// color helpers
var (
	colInfo    = color.Info // style provided by gookit/color
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
	colNote    = color.Tag("notice")
)
