package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"

	"github.com/dverna/crossplan/internal/ado"
	"github.com/dverna/crossplan/internal/cli"
	"github.com/dverna/crossplan/internal/db"
	"github.com/dverna/crossplan/internal/fetch"
	"github.com/dverna/crossplan/internal/mutation"
	"github.com/dverna/crossplan/internal/prefs"
	"github.com/dverna/crossplan/internal/scoping"
	"github.com/dverna/crossplan/internal/state"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Determine DB path: env var or default ~/.crossplan/crossplan.db
	dbPath := os.Getenv("CROSSPLAN_DB")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("finding home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".crossplan", "crossplan.db")
	}

	database, err := db.OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	cfg := ado.LoadConfig()
	if cfg.BaseURL == "" {
		return fmt.Errorf("CROSSPLAN_ADO_URL is not set")
	}
	if cfg.Token == "" {
		return fmt.Errorf("CROSSPLAN_ADO_TOKEN is not set")
	}

	logCalls := os.Getenv("CROSSPLAN_LOG_CALLS") != "" &&
		isatty.IsTerminal(os.Stderr.Fd())

	var adoObserver ado.Observer = ado.NoopObserver{}
	var fetchObserver fetch.Observer = fetch.NoopObserver{}
	var mutObserver mutation.Observer = mutation.NoopObserver{}
	if logCalls {
		adoObserver = ado.NewLogObserver(os.Stderr)
		fetchObserver = fetch.NewLogObserver(os.Stderr)
		mutObserver = mutation.NewLogObserver(os.Stderr)
	}

	client := ado.NewClient(cfg, adoObserver)
	resolver := scoping.NewResolver(client)

	store := state.NewStore()
	cache := state.NewCache()
	broadcaster := state.NewBroadcaster(store, cache)

	kv := prefs.NewKVStore(database)
	orders := prefs.NewOrderRepo(kv)
	instances := prefs.NewInstanceRepo(kv, orders, db.NewSQLiteUnitOfWork(database))

	app := &cli.App{
		Client:    client,
		Fetch:     fetch.NewPipeline(client, resolver, fetchObserver),
		Mutations: mutation.NewPipeline(client, broadcaster, mutObserver),
		Store:     store,
		Cache:     cache,
		Orders:    orders,
		Instances: instances,
	}

	rootCmd := cli.NewRootCmd(app)
	return rootCmd.Execute()
}
