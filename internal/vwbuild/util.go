package vwbuild

import (
	"fmt"
	"io"
	"os"
)

// color-compatible sprint interface (works with themes, RGB styles and tags)
type colorPrinter interface {
	Sprint(a ...any) string
	Sprintf(format string, a ...any) string
}

// cPrintf writes a styled message to w or falls back to plain text when nil
func cPrintf(w io.Writer, p colorPrinter, format string, a ...any) {
	if p == nil {
		fmt.Fprintf(w, format, a...)
		return
	}
	fmt.Fprint(w, p.Sprintf(format, a...))
}

// cPrintln writes a styled line to w or falls back to plain text when nil
func cPrintln(w io.Writer, p colorPrinter, a ...any) {
	if p == nil {
		fmt.Fprintln(w, a...)
		return
	}
	fmt.Fprintln(w, p.Sprint(a...))
}

// debugSink is overridable so tests can capture trace output.
var debugSink io.Writer = os.Stdout

// debugf prints debug messages when Debug is true
func debugf(format string, args ...any) {
	if Debug {
		fmt.Fprintf(debugSink, format, args...)
	}
}

// copyFile copies a single file from src to dst, preserving the file mode.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode())
}
