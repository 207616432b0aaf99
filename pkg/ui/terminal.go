package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"igrepost/pkg/progress"
)

// Banner printed when the bot starts
const Banner = `
  ╔══════════════════════════════════════╗
  ║   igrepost                           ║
  ║   DM-triggered reel reposter         ║
  ╚══════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// PrintBanner prints the startup banner
func PrintBanner() {
	fmt.Print(Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Println(Red(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Println(Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Println(Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	fmt.Printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Println(Yellow(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Println(Yellow(msg))
	}
}

// PrintRecord prints a status record to stdout
func PrintRecord(r progress.Record) {
	WriteRecord(os.Stdout, r)
}

// WriteRecord writes a status record as aligned label/value lines
func WriteRecord(w io.Writer, r progress.Record) {
	color := Dim
	switch r.Status {
	case progress.StatusDownloading, progress.StatusUploading:
		color = Cyan
	case progress.StatusCompleted:
		color = Green
	case progress.StatusError:
		color = Red
	}

	line := func(label, value string) {
		if value == "" {
			value = Dim("-")
		}
		fmt.Fprintf(w, "%s %s\n", Cyan(fmt.Sprintf("%-9s", label+":")), value)
	}
	line("Status", color(string(r.Status)))
	line("Message", r.Message)
	line("Reel", r.ReelIDOrEmpty())
	line("Sender", r.SenderOrEmpty())
	line("Updated", r.UpdatedAt.Local().Format(time.RFC3339))
}
