// ensemblectl is a small inspection and demo CLI for the coordination
// client, grounded in the corpus's habit of a single flag-dispatched
// binary over a domain manager (see the payments CLI it borrows its
// subcommand shape from). With ENSEMBLE_CONNECT_STRING set, it parses
// the string and dials a real ensemble over transport/wiretransport;
// otherwise it drives an in-process fake ensemble, since no wire
// server ships with this module by default -- it exists to exercise
// the client surface end to end even with nothing else running.
//
// Usage:
//
//	ensemblectl get <path>
//	ensemblectl children <path>
//	ensemblectl exists <path>
//	ensemblectl create <path> <data> [-sequential] [-ephemeral]
//	ensemblectl set <path> <data> <version>
//	ensemblectl erase <path> <version>
//	ensemblectl seed                         - populate a few demo entries
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/r3e-network/ensemble"
	"github.com/r3e-network/ensemble/internal/config"
	"github.com/r3e-network/ensemble/internal/logging"
	"github.com/r3e-network/ensemble/transport/memtransport"
	"github.com/r3e-network/ensemble/transport/wiretransport"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Session.DefaultConnect)
	defer cancel()

	engine, err := connect(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "get":
		cmdGet(ctx, engine, args)
	case "children":
		cmdChildren(ctx, engine, args)
	case "exists":
		cmdExists(ctx, engine, args)
	case "create":
		cmdCreate(ctx, engine, args)
	case "set":
		cmdSet(ctx, engine, args)
	case "erase":
		cmdErase(ctx, engine, args)
	case "seed":
		cmdSeed(ctx, engine)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

// connect dials a real ensemble over wiretransport when
// cfg.Session.ConnectString names one, parsing it into
// ensemble.ConnectionParams so Hosts/RandomizeHosts/Timeout drive host
// selection; otherwise it falls back to an in-process fake ensemble.
func connect(ctx context.Context, cfg *config.Config, log *logging.Logger) (*ensemble.Engine, error) {
	if cfg.Session.ConnectString == "" {
		ens := memtransport.NewEnsemble()
		transport := ens.Connect()
		engine := ensemble.NewEngine(transport, ensemble.Options{Logger: log})
		transport.MarkConnected()
		return engine, nil
	}

	params, err := ensemble.ParseConnectionString(cfg.Session.ConnectString)
	if err != nil {
		return nil, fmt.Errorf("parsing ENSEMBLE_CONNECT_STRING: %w", err)
	}
	transport, err := wiretransport.DialEnsemble(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("dialing ensemble: %w", err)
	}
	return ensemble.NewEngine(transport, ensemble.Options{Logger: log}), nil
}

func printUsage() {
	fmt.Println(`ensemblectl - coordination client inspection tool

Usage:
  ensemblectl <command> [arguments]

Commands:
  get <path>                                 Read data and stat
  children <path>                            List child names
  exists <path>                              Report whether path exists
  create <path> <data> [-sequential] [-ephemeral]   Create an entry
  set <path> <data> <version>                Set data, checked against version
  erase <path> <version>                     Erase an entry, checked against version
  seed                                       Populate a few demo entries

Environment Variables:
  ENSEMBLE_CONFIG_FILE      Path to an ensemble.yaml override
  ENSEMBLE_LOG_LEVEL        Log level (default info)
  ENSEMBLE_LOG_FORMAT       Log format: text or json
  ENSEMBLE_CONNECT_STRING   scheme://host[,host...][/chroot] of a real ensemble;
                            unset runs against an in-process fake one`)
}

func cmdGet(ctx context.Context, e *ensemble.Engine, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ensemblectl get <path>")
		os.Exit(1)
	}
	res, err := e.Get(ensemble.Path(args[0])).Wait(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("data:    %q\n", res.Data)
	fmt.Printf("version: %d\n", res.Stat.DataVersion)
	fmt.Printf("ctime:   %s\n", res.Stat.CreateTime.Format(time.RFC3339))
}

func cmdChildren(ctx context.Context, e *ensemble.Engine, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ensemblectl children <path>")
		os.Exit(1)
	}
	res, err := e.Children(ensemble.Path(args[0])).Wait(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, c := range res.Children {
		fmt.Println(c)
	}
}

func cmdExists(ctx context.Context, e *ensemble.Engine, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ensemblectl exists <path>")
		os.Exit(1)
	}
	res, err := e.Exists(ensemble.Path(args[0])).Wait(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(res.Present)
}

func cmdCreate(ctx context.Context, e *ensemble.Engine, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	sequential := fs.Bool("sequential", false, "append a sequential suffix")
	ephemeral := fs.Bool("ephemeral", false, "tie the entry to this session")
	fs.Parse(args)

	remaining := fs.Args()
	if len(remaining) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: ensemblectl create <path> <data> [-sequential] [-ephemeral]")
		os.Exit(1)
	}
	if len(remaining) > 2 {
		// Flags written after <path> <data>, as the usage shows.
		fs.Parse(remaining[2:])
		remaining = remaining[:2]
	}

	var mode ensemble.CreateMode
	if *sequential {
		mode |= ensemble.ModeSequential
	}
	if *ephemeral {
		mode |= ensemble.ModeEphemeral
	}

	res, err := e.Create(ensemble.Path(remaining[0]), []byte(remaining[1]), ensemble.OpenUnsafe(), mode).Wait(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created: %s\n", res.Name)
}

func cmdSet(ctx context.Context, e *ensemble.Engine, args []string) {
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: ensemblectl set <path> <data> <version>")
		os.Exit(1)
	}
	version, err := strconv.Atoi(args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid version: %v\n", err)
		os.Exit(1)
	}
	res, err2 := e.Set(ensemble.Path(args[0]), []byte(args[1]), ensemble.DataVersion(version)).Wait(ctx)
	if err2 != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err2)
		os.Exit(1)
	}
	fmt.Printf("new version: %d\n", res.Stat.DataVersion)
}

func cmdErase(ctx context.Context, e *ensemble.Engine, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: ensemblectl erase <path> <version>")
		os.Exit(1)
	}
	version, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid version: %v\n", err)
		os.Exit(1)
	}
	if _, err2 := e.Erase(ensemble.Path(args[0]), ensemble.DataVersion(version)).Wait(ctx); err2 != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err2)
		os.Exit(1)
	}
	fmt.Println("erased")
}

func cmdSeed(ctx context.Context, e *ensemble.Engine) {
	entries := []string{"/demo", "/demo/a", "/demo/b"}
	for _, p := range entries {
		if _, err := e.Create(ensemble.Path(p), []byte("seed"), ensemble.OpenUnsafe(), 0).Wait(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error seeding %s: %v\n", p, err)
			os.Exit(1)
		}
	}
	fmt.Println("seeded /demo, /demo/a, /demo/b")
}
