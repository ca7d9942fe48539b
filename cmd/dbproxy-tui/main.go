// Command dbproxy-tui watches captured query traffic from a running
// dbproxyd's web dashboard in a terminal UI.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/henrypark/dbproxy/tui"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("dbproxy-tui", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "dbproxy-tui — watch proxied SQL traffic in real-time\n\nUsage:\n  dbproxy-tui [flags] <dbproxyd-http-addr>\n\nFlags:\n")
		fs.PrintDefaults()
	}

	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("dbproxy-tui %s\n", version)
		return
	}

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	if err := watch(fs.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func watch(target string) error {
	p := tea.NewProgram(tui.New(target), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
