package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)

	numbers = message.NewPrinter(language.English)
)

func printSuccess(format string, args ...interface{}) {
	successColor.Fprintf(os.Stdout, "✓ "+format+"\n", args...)
}

func printInfo(format string, args ...interface{}) {
	infoColor.Fprintf(os.Stdout, format+"\n", args...)
}

func printWarning(format string, args ...interface{}) {
	warnColor.Fprintf(os.Stderr, format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	errorColor.Fprintf(os.Stderr, "✗ "+format+"\n", args...)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode json: %v\n", err)
	}
}

func printField(label string, value interface{}) {
	fmt.Printf("   %-12s %v\n", label+":", value)
}

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

func formatCount(n int) string {
	return numbers.Sprintf("%d", n)
}

func formatAge(t time.Time) string {
	return humanize.Time(t)
}

// interactive reports whether progress output should be drawn.
func interactive() bool {
	return !jsonOutput && term.IsTerminal(int(os.Stderr.Fd()))
}

// startSpinner shows a spinner on stderr while a slow step runs. It returns
// nil when output is not interactive; the spinner helpers accept nil.
func startSpinner(suffix string) *spinner.Spinner {
	if !interactive() {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriterFile(os.Stderr))
	s.Suffix = " " + suffix
	s.Start()
	return s
}

func updateSpinner(s *spinner.Spinner, suffix string) {
	if s == nil {
		return
	}
	s.Lock()
	s.Suffix = " " + suffix
	s.Unlock()
}

func stopSpinner(s *spinner.Spinner) {
	if s != nil {
		s.Stop()
	}
}
