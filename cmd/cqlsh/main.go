// cqlsh is an interactive CQL shell. Every statement runs through the cql.connect and
// cql.execute slots, so it sees exactly what the slot API returns.
//
// Usage:
//
//	cqlsh [--config cqldata.yaml] [--hosts 127.0.0.1] [--connection generic]
//
// Commands (in REPL):
//
//	<cql>;                 Execute a statement
//	\connect <name>        Switch connection, e.g. "generic" or "generic|magic_log"
//	\filter [expression]   Keep rows matching a CEL expression over row, empty to clear
//	\slots                 List the registered slots
//	help                   Show this help
//	exit / quit / q        Exit
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/magiccloud/cqldata"
	"github.com/magiccloud/cqldata/cassandra"
	"github.com/magiccloud/cqldata/config"
	"github.com/magiccloud/cqldata/slots"
)

var (
	colorError  = color.New(color.FgRed, color.Bold)
	colorColumn = color.New(color.FgCyan)
	colorDim    = color.New(color.Faint)
	colorOK     = color.New(color.FgGreen)
)

func main() {
	fs := flag.NewFlagSet("cqlsh", flag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "Path of the YAML or JSONC configuration file")
	hosts := fs.StringSlice("hosts", nil, "Contact points, overrides cassandra.hosts")
	connection := fs.String("connection", slots.Generic, "Initial connection name")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			colorError.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	} else if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		colorError.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(*hosts) > 0 {
		cfg.Cassandra.Hosts = *hosts
	}

	pool := cassandra.NewPool()
	defer pool.Close()
	sig := slots.NewSignaler()
	slots.Register(sig, slots.NewPoolConnector(pool, cfg.Clusters()))

	r := &repl{signaler: sig, connection: *connection}
	if err := r.run(context.Background()); err != nil {
		colorError.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type repl struct {
	signaler   *slots.Signaler
	connection string
	filter     string
	liner      *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cqlsh_history")
}

func (r *repl) run(ctx context.Context) error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()
	r.liner.SetCtrlCAborts(true)
	r.liner.SetMultiLineMode(true)
	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}
	defer r.saveHistory()

	fmt.Printf("cqlsh %s, connection %s\n", cqldata.Version, r.connection)
	fmt.Println("Type 'help' for available commands.")

	var statement strings.Builder
	for {
		prompt := "cql> "
		if statement.Len() > 0 {
			prompt = "...> "
		}
		line, err := r.liner.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		if statement.Len() == 0 {
			switch fields := strings.Fields(line); strings.ToLower(fields[0]) {
			case "exit", "quit", "q":
				fmt.Println("Bye!")
				return nil
			case "help", "?":
				printHelp()
				continue
			case `\connect`:
				if len(fields) < 2 {
					colorError.Println(`usage: \connect <name>`)
					continue
				}
				r.connection = fields[1]
				colorOK.Printf("connection set to %s\n", r.connection)
				continue
			case `\filter`:
				r.filter = strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
				if r.filter != "" {
					if _, err := slots.NewRowFilter(r.filter); err != nil {
						colorError.Println(err)
						r.filter = ""
					}
				}
				continue
			case `\slots`:
				fmt.Println(strings.Join(r.signaler.Names(), "\n"))
				continue
			}
		}

		statement.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			statement.WriteByte(' ')
			continue
		}
		cql := statement.String()
		statement.Reset()
		r.execute(ctx, cql)
	}
}

func (r *repl) execute(ctx context.Context, cql string) {
	exec := slots.NewNode("cql.execute", cql)
	if r.filter != "" {
		exec.Add(slots.NewNode(".filter", r.filter))
	}
	root := slots.NewNode("cql.connect", r.connection, exec)
	if err := r.signaler.Signal(ctx, "cql.connect", root); err != nil {
		colorError.Println(err)
		return
	}
	printRows(exec.Children)
}

func printRows(rows []*slots.Node) {
	for i, row := range rows {
		colorDim.Printf("@ Row %d\n", i+1)
		width := 0
		for _, c := range row.Children {
			width = max(width, len(c.Name))
		}
		for _, c := range row.Children {
			colorColumn.Printf(" %-*s", width, c.Name)
			fmt.Printf(" | %v\n", c.Value)
		}
	}
	colorDim.Printf("(%d rows)\n", len(rows))
}

func printHelp() {
	fmt.Println(`Commands:
  <cql>;                 Execute a statement, may span lines until ';'
  \connect <name>        Switch connection, e.g. "generic" or "generic|magic_log"
  \filter [expression]   Keep rows matching a CEL expression over row, empty to clear
  \slots                 List the registered slots
  help                   Show this help
  exit / quit / q        Exit`)
}

func (r *repl) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}
