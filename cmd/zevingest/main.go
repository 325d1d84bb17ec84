// Command-line entry point for the fleet ingestion pipeline.
//
// Three subcommands cover the pipeline's surfaces:
//
//	ingest - run one vendor loader against one source file
//	daily  - rebuild the per-day usage rollup from stored telemetry
//	feed   - consume live telemetry from a NATS subject
//
// Exit codes: 0 success, 1 abort (bad input file, unresolved fleet,
// database failure), 2 usage.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"zev_ingest/internal/aggregate"
	"zev_ingest/internal/correct"
	"zev_ingest/internal/feed"
	"zev_ingest/internal/ledger"
	"zev_ingest/internal/loaders"
	"zev_ingest/internal/storage"

	// Vendor packages register their loaders via init().
	_ "zev_ingest/internal/loaders/freight"
	_ "zev_ingest/internal/loaders/sqtrucking"
	_ "zev_ingest/internal/loaders/watsontown"
	_ "zev_ingest/internal/loaders/wilsbach"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "zevingest - fleet data ingestion pipeline:")
	fmt.Fprintln(w, "  ingest  - load one vendor source file")
	fmt.Fprintln(w, "  daily   - rebuild per-day usage from stored telemetry")
	fmt.Fprintln(w, "  feed    - consume live telemetry from NATS")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  zevingest ingest -file data.xlsx [-loader wilsbach-telemetry] [-db sqlite] [-ledger ingestion_log.json]")
	fmt.Fprintln(w, "  zevingest daily -fleet-ids 2,3 [-idle-threshold-minutes 15]")
	fmt.Fprintln(w, "  zevingest feed [-subject 'fleet.telemetry.>'] [-url nats://localhost:4222]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Registered loaders:")
	for _, l := range loaders.All() {
		fmt.Fprintf(w, "  %-24s %s (%s)\n", l.Name(), l.FleetName(), l.Dataset())
	}
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	switch os.Args[1] {
	case "ingest":
		runIngest(os.Args[2:])
	case "daily":
		runDaily(os.Args[2:])
	case "feed":
		runFeed(os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

// storeFlags registers the shared database flags on a subcommand's flag set.
func storeFlags(fs *flag.FlagSet) *storage.Config {
	cfg := storage.DefaultConfig()
	fs.StringVar(&cfg.Backend, "db", cfg.Backend, "relational backend: postgres or sqlite")
	fs.StringVar(&cfg.SQLitePath, "sqlite", cfg.SQLitePath, "sqlite database path (with -db sqlite)")
	fs.StringVar(&cfg.Postgres.Host, "pg-host", cfg.Postgres.Host, "postgres host")
	fs.IntVar(&cfg.Postgres.Port, "pg-port", cfg.Postgres.Port, "postgres port")
	fs.StringVar(&cfg.Postgres.Database, "pg-db", cfg.Postgres.Database, "postgres database")
	fs.StringVar(&cfg.Postgres.User, "pg-user", cfg.Postgres.User, "postgres user")
	fs.StringVar(&cfg.Postgres.Password, "pg-pass", cfg.Postgres.Password, "postgres password")
	fs.BoolVar(&cfg.Archive, "archive", false, "also archive raw telemetry to ClickHouse")
	fs.StringVar(&cfg.ClickHouse.Host, "ch-host", cfg.ClickHouse.Host, "clickhouse host")
	fs.IntVar(&cfg.ClickHouse.Port, "ch-port", cfg.ClickHouse.Port, "clickhouse port")
	fs.StringVar(&cfg.ClickHouse.Database, "ch-db", cfg.ClickHouse.Database, "clickhouse database")
	fs.StringVar(&cfg.ClickHouse.User, "ch-user", cfg.ClickHouse.User, "clickhouse user")
	fs.StringVar(&cfg.ClickHouse.Password, "ch-pass", cfg.ClickHouse.Password, "clickhouse password")
	return &cfg
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "zevingest: %v\n", err)
	os.Exit(1)
}

func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	file := fs.String("file", "", "vendor source file (.csv, .xlsx)")
	loaderName := fs.String("loader", "", "loader name; empty autodetects from the file name")
	ledgerPath := fs.String("ledger", "ingestion_log.json", "ingestion ledger path; empty disables the ledger")
	force := fs.Bool("force", false, "reprocess even if the ledger has this file")
	cfg := storeFlags(fs)
	_ = fs.Parse(args)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "ingest: -file is required")
		fs.Usage()
		os.Exit(2)
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := storage.Open(ctx, *cfg)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	archive, err := storage.OpenArchive(ctx, *cfg)
	if err != nil {
		fatal(err)
	}

	env := &loaders.Env{
		Store:   store,
		Archive: archive,
		Correct: correct.DefaultConfig(),
	}
	if *ledgerPath != "" && !*force {
		env.Ledger = ledger.Load(*ledgerPath)
	}

	s, err := loaders.Ingest(ctx, env, *loaderName, *file)
	if err != nil {
		fatal(err)
	}
	fmt.Print(s.String())
}

func runDaily(args []string) {
	fs := flag.NewFlagSet("daily", flag.ExitOnError)
	fleetIDs := fs.String("fleet-ids", "2", "comma-separated fleet ids to rebuild")
	idleMin := fs.Float64("idle-threshold-minutes", aggregate.DefaultIdleThresholdMin,
		"stop length (minutes) that splits two trips")
	cfg := storeFlags(fs)
	_ = fs.Parse(args)

	ids, err := parseIDs(*fleetIDs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "daily: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := storage.Open(ctx, *cfg)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	st, err := aggregate.Run(ctx, store, ids, *idleMin)
	if err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stderr, "daily: fleets=%v rows=%d inserted=%d updated=%d unchanged=%d\n",
		ids, st.Attempted, st.Inserted, st.Updated, st.SkippedUnchanged)
}

func runFeed(args []string) {
	fs := flag.NewFlagSet("feed", flag.ExitOnError)
	fcfg := feed.DefaultConfig()
	fs.StringVar(&fcfg.URL, "url", fcfg.URL, "NATS server URL")
	fs.StringVar(&fcfg.Subject, "subject", fcfg.Subject, "telemetry subject")
	fs.StringVar(&fcfg.Queue, "queue", fcfg.Queue, "queue group")
	fs.IntVar(&fcfg.BatchSize, "batch", fcfg.BatchSize, "rows per flush")
	fs.DurationVar(&fcfg.FlushInterval, "flush", fcfg.FlushInterval, "max time between flushes")
	zone := fs.String("zone", "UTC", "zone applied to naive message timestamps")
	cfg := storeFlags(fs)
	_ = fs.Parse(args)

	loc, err := time.LoadLocation(*zone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "feed: %v\n", err)
		os.Exit(2)
	}
	fcfg.Zone = loc

	ctx, cancel := signalContext()
	defer cancel()

	store, err := storage.Open(ctx, *cfg)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	archive, err := storage.OpenArchive(ctx, *cfg)
	if err != nil {
		fatal(err)
	}

	env := &loaders.Env{Store: store, Archive: archive, Correct: correct.DefaultConfig()}
	if err := feed.NewConsumer(fcfg, env).Run(ctx); err != nil {
		fatal(err)
	}
}

func parseIDs(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad fleet id %q", part)
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no fleet ids given")
	}
	return out, nil
}
