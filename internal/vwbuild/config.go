package vwbuild

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gookit/color"
)

// Supported Debian platform baselines. Buster repositories are archived, so
// provisioning it needs the legacy-mirror retarget.
const (
	SuiteBuster   = "buster"
	SuiteBullseye = "bullseye"
)

// Config holds the file/environment configuration layer (debug flag, upload
// credentials). CLI flags are resolved separately into a BuildConfiguration.
type Config struct {
	Values map[string]string
}

// Load /etc/vwbuild.conf and apply defaults
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	// Attempt to read the file
	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	mergeEnvOverrides(cfg)
	return cfg, nil
}

// Merge VWBUILD_* and R2_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "VWBUILD_") || strings.HasPrefix(env, "R2_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}
}

func initConfig(cfg *Config) {
	Debug = cfg.Values["VWBUILD_DEBUG"] == "1"
}

// BuildConfiguration is the immutable result of flag resolution. Every later
// stage reads from it; nothing writes to it after resolveArgs returns.
type BuildConfiguration struct {
	Suite       string
	Target      string
	Profile     string
	Features    []string // order-significant, passed verbatim to cargo
	OutDir      string
	Format      string // archive compression: gz, zst or xz
	Strip       bool
	InstallDeps bool
	Upload      bool
}

func defaultConfiguration() *BuildConfiguration {
	return &BuildConfiguration{
		Suite:   SuiteBullseye,
		Target:  "x86_64-unknown-linux-gnu",
		Profile: "release",
		Features: []string{
			"sqlite", "mysql", "postgresql", "vendored_openssl",
		},
		OutDir: "dist",
		Format: "gz",
		Strip:  true,
	}
}

// errHelpRequested is returned by resolveArgs when -h/--help was given; the
// caller prints usage and terminates successfully without running anything.
// errVersionRequested works the same way for --version, wherever it appears
// on the command line.
var (
	errHelpRequested    = fmt.Errorf("help requested")
	errVersionRequested = fmt.Errorf("version requested")
)

// resolveArgs merges built-in defaults with command-line tokens into one
// BuildConfiguration. Validation failures happen here, before any side effect.
func resolveArgs(args []string) (*BuildConfiguration, error) {
	cfg := defaultConfiguration()

	takeValue := func(i int, flag string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%w: %s requires an argument", errConfiguration, flag)
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		var err error
		var val string
		switch tok := args[i]; tok {
		case "-h", "--help":
			return nil, errHelpRequested
		case "--version":
			return nil, errVersionRequested
		case "--suite":
			if val, err = takeValue(i, tok); err != nil {
				return nil, err
			}
			cfg.Suite = val
			i++
		case "--target":
			if val, err = takeValue(i, tok); err != nil {
				return nil, err
			}
			cfg.Target = val
			i++
		case "--profile":
			if val, err = takeValue(i, tok); err != nil {
				return nil, err
			}
			cfg.Profile = val
			i++
		case "--features":
			if val, err = takeValue(i, tok); err != nil {
				return nil, err
			}
			cfg.Features = strings.Fields(val)
			i++
		case "--out-dir":
			if val, err = takeValue(i, tok); err != nil {
				return nil, err
			}
			cfg.OutDir = val
			i++
		case "--format":
			if val, err = takeValue(i, tok); err != nil {
				return nil, err
			}
			cfg.Format = val
			i++
		case "--no-strip":
			cfg.Strip = false
		case "--install-deps":
			cfg.InstallDeps = true
		case "--upload":
			cfg.Upload = true
		default:
			return nil, fmt.Errorf("%w: unknown option %q", errConfiguration, tok)
		}
	}

	if cfg.Suite != SuiteBuster && cfg.Suite != SuiteBullseye {
		return nil, fmt.Errorf("%w: unsupported suite %q (expected %s or %s)",
			errConfiguration, cfg.Suite, SuiteBuster, SuiteBullseye)
	}
	switch cfg.Format {
	case "gz", "zst", "xz":
	default:
		return nil, fmt.Errorf("%w: unsupported archive format %q (expected gz, zst or xz)",
			errConfiguration, cfg.Format)
	}
	return cfg, nil
}

// packageName returns the deterministic staging/archive base name.
func (c *BuildConfiguration) packageName() string {
	return fmt.Sprintf("%s-%s-%s", appName, c.Target, c.Suite)
}

// printUsage writes the options table to w.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, colSuccess.Sprint("Usage: vwbuild [options]"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Builds vaultwarden against a Debian platform baseline and packages")
	fmt.Fprintln(w, "the executable into a distributable archive.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, colInfo.Sprint("Options:"))

	type optInfo struct {
		Opt  string
		Desc string
	}
	opts := []optInfo{
		{"--suite <buster|bullseye>", "Debian baseline to build against (default: bullseye)"},
		{"--target <triple>", "Cargo target triple (default: x86_64-unknown-linux-gnu)"},
		{"--profile <name>", "Cargo build profile (default: release)"},
		{"--features \"<list>\"", "Whitespace-separated cargo feature list"},
		{"--out-dir <path>", "Packaging output directory (default: dist)"},
		{"--format <gz|zst|xz>", "Archive compression format (default: gz)"},
		{"--no-strip", "Keep debug symbols in the packaged executable"},
		{"--install-deps", "Install build prerequisites via apt-get first"},
		{"--upload", "Publish the finished archive to the configured R2 bucket"},
		{"--version", "Print version and build date"},
		{"-h, --help", "Show this help"},
	}

	maxLen := 0
	for _, o := range opts {
		if len(o.Opt) > maxLen {
			maxLen = len(o.Opt)
		}
	}
	for _, o := range opts {
		pad := maxLen - len(o.Opt) + 4
		fmt.Fprintf(w, "  %s%s%s\n", color.Bold.Sprint(o.Opt), strings.Repeat(" ", pad), o.Desc)
	}
	fmt.Fprintln(w)
}
