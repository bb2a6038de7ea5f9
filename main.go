package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mineoil-data/fleet.report/internal/api"
	"github.com/mineoil-data/fleet.report/internal/config"
	"github.com/mineoil-data/fleet.report/internal/harmonize"
	"github.com/mineoil-data/fleet.report/internal/pipeline"
	"github.com/mineoil-data/fleet.report/internal/recommend"
	"github.com/mineoil-data/fleet.report/internal/stewart"
	"github.com/mineoil-data/fleet.report/internal/store"
	"github.com/mineoil-data/fleet.report/internal/trend"
)

const defaultDBFile = "fleet_report.db"

const usage = `usage: fleetreport <command> [flags]

commands:
  harmonize   ingest a raw lab batch into canonical samples
  limits      recompute statistical thresholds for a tenant
  classify    classify reports and aggregate machine statuses
  run         limits followed by classify
  serve       start the read-only HTTP server
  trend       render a measurement trend chart as PNG
  migrate     run database migrations (up|down|version)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "harmonize":
		err = cmdHarmonize(os.Args[2:])
	case "limits":
		err = cmdLimits(os.Args[2:])
	case "classify":
		err = cmdClassify(os.Args[2:])
	case "run":
		err = cmdRun(os.Args[2:])
	case "serve":
		err = cmdServe(os.Args[2:])
	case "trend":
		err = cmdTrend(os.Args[2:])
	case "migrate":
		err = cmdMigrate(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func openStore(path string) (*store.DB, error) {
	db, err := store.OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func loadSettings(path string) (*config.Settings, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == config.DefaultConfigPath {
		// Running without a config file uses the built-in defaults.
		return &config.Settings{}, nil
	}
	return config.Load(path)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cmdHarmonize(args []string) error {
	fs := flag.NewFlagSet("harmonize", flag.ExitOnError)
	dbFile := fs.String("db", defaultDBFile, "SQLite database file")
	configPath := fs.String("config", config.DefaultConfigPath, "Settings file")
	tenant := fs.String("tenant", "", "Tenant identifier")
	source := fs.String("source", "", "Lab source format: finning or als")
	essaysFile := fs.String("essays", "", "JSON file mapping lab essay codes to canonical essay names")
	input := fs.String("input", "", "JSON file holding an array of raw records")
	fs.Parse(args)

	if *tenant == "" || *source == "" || *essaysFile == "" || *input == "" {
		return fmt.Errorf("tenant, source, essays and input are all required")
	}

	settings, err := loadSettings(*configPath)
	if err != nil {
		return err
	}

	essays, err := readJSONFile[map[string]string](*essaysFile)
	if err != nil {
		return fmt.Errorf("failed to read essay table: %w", err)
	}
	records, err := readJSONFile[[]harmonize.RawRecord](*input)
	if err != nil {
		return fmt.Errorf("failed to read raw records: %w", err)
	}

	var adapter harmonize.Adapter
	switch *source {
	case "finning":
		adapter = harmonize.NewFinningAdapter(*tenant, essays)
	case "als":
		adapter = harmonize.NewALSAdapter(*tenant, essays)
	default:
		return fmt.Errorf("unknown source %q", *source)
	}

	db, err := openStore(*dbFile)
	if err != nil {
		return err
	}
	defer db.Close()

	p := pipeline.New(db, settings)
	summary, rejects, err := p.Harmonize(context.Background(), adapter, records)
	if err != nil {
		return err
	}
	return printJSON(struct {
		*pipeline.HarmonizeSummary
		Rejects []harmonize.Reject `json:"rejects,omitempty"`
	}{summary, rejects})
}

func cmdLimits(args []string) error {
	fs := flag.NewFlagSet("limits", flag.ExitOnError)
	dbFile := fs.String("db", defaultDBFile, "SQLite database file")
	configPath := fs.String("config", config.DefaultConfigPath, "Settings file")
	tenant := fs.String("tenant", "", "Tenant identifier")
	fs.Parse(args)

	if *tenant == "" {
		return fmt.Errorf("tenant is required")
	}

	settings, err := loadSettings(*configPath)
	if err != nil {
		return err
	}
	db, err := openStore(*dbFile)
	if err != nil {
		return err
	}
	defer db.Close()

	p := pipeline.New(db, settings)
	summary, err := p.ComputeLimits(context.Background(), *tenant)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func cmdClassify(args []string) error {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	dbFile := fs.String("db", defaultDBFile, "SQLite database file")
	configPath := fs.String("config", config.DefaultConfigPath, "Settings file")
	tenant := fs.String("tenant", "", "Tenant identifier")
	noRecommend := fs.Bool("no-recommend", false, "Skip recommendation generation")
	fs.Parse(args)

	if *tenant == "" {
		return fmt.Errorf("tenant is required")
	}

	settings, err := loadSettings(*configPath)
	if err != nil {
		return err
	}
	db, err := openStore(*dbFile)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	p := pipeline.New(db, settings)
	if !*noRecommend {
		orch, cleanup, err := buildOrchestrator(ctx, settings)
		if err != nil {
			return err
		}
		defer cleanup()
		p.Orchestrator = orch
	}

	summary, err := p.Classify(ctx, *tenant)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dbFile := fs.String("db", defaultDBFile, "SQLite database file")
	configPath := fs.String("config", config.DefaultConfigPath, "Settings file")
	tenant := fs.String("tenant", "", "Tenant identifier")
	noRecommend := fs.Bool("no-recommend", false, "Skip recommendation generation")
	fs.Parse(args)

	if *tenant == "" {
		return fmt.Errorf("tenant is required")
	}

	settings, err := loadSettings(*configPath)
	if err != nil {
		return err
	}
	db, err := openStore(*dbFile)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	p := pipeline.New(db, settings)
	if !*noRecommend {
		orch, cleanup, err := buildOrchestrator(ctx, settings)
		if err != nil {
			return err
		}
		defer cleanup()
		p.Orchestrator = orch
	}

	limits, classified, err := p.Run(ctx, *tenant)
	if err != nil {
		return err
	}
	return printJSON(struct {
		Limits   *pipeline.LimitsSummary   `json:"limits"`
		Classify *pipeline.ClassifySummary `json:"classify"`
	}{limits, classified})
}

// buildOrchestrator wires the Gemini generator and whichever cache the
// settings select. Without a GEMINI_API_KEY there is no generator:
// non-Normal reports then keep their recommendation pending rather than
// receiving a silent placeholder.
func buildOrchestrator(ctx context.Context, settings *config.Settings) (*recommend.Orchestrator, func(), error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Print("GEMINI_API_KEY not set; recommendations will be left pending")
		return nil, func() {}, nil
	}

	gen, err := recommend.NewGeminiGenerator(ctx, apiKey,
		settings.GetGeminiModel(), settings.GetGeminiTemperature(), settings.GetGeminiMaxTokens())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	var cache recommend.Cache
	cleanup := func() { gen.Close() }
	if addr := settings.GetRedisAddr(); addr != "" {
		rc, err := recommend.NewRedisCache(ctx, addr, settings.GetCacheTTL())
		if err != nil {
			gen.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		cache = rc
		cleanup = func() {
			rc.Close()
			gen.Close()
		}
	} else {
		cache = recommend.NewMemoryCache()
	}

	orch := recommend.NewOrchestrator(gen, cache, settings.GetNormalMessage())
	orch.Workers = settings.GetWorkers()
	orch.Timeout = settings.GetRequestTimeout()
	return orch, cleanup, nil
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dbFile := fs.String("db", defaultDBFile, "SQLite database file")
	listen := fs.String("listen", ":8080", "Listen address")
	fs.Parse(args)

	db, err := openStore(*dbFile)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(api.NewServer(db).ServeMux()),
	}

	go func() {
		log.Printf("listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	log.Print("graceful shutdown complete")
	return nil
}

func cmdTrend(args []string) error {
	fs := flag.NewFlagSet("trend", flag.ExitOnError)
	dbFile := fs.String("db", defaultDBFile, "SQLite database file")
	tenant := fs.String("tenant", "", "Tenant identifier")
	unit := fs.String("unit", "", "Unit id")
	component := fs.String("component", "", "Component name")
	essay := fs.String("essay", "", "Essay name")
	machine := fs.String("machine", "", "Machine name for threshold lookup")
	outDir := fs.String("out", "plots", "Output directory")
	fs.Parse(args)

	if *tenant == "" || *unit == "" || *component == "" || *essay == "" {
		return fmt.Errorf("tenant, unit, component and essay are all required")
	}

	db, err := openStore(*dbFile)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	sets, err := db.ThresholdsByTenant(ctx, *tenant)
	if err != nil {
		return err
	}
	snap := stewart.FromSets(*tenant, sets)

	out, err := trend.NewPlotter(db, *outDir).Render(ctx, *tenant, *unit, *component, *essay, *machine, snap)
	if err != nil {
		return err
	}
	log.Printf("wrote %s", out)
	return nil
}

func cmdMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbFile := fs.String("db", defaultDBFile, "SQLite database file")
	fs.Parse(args)

	action := "up"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}

	db, err := store.OpenDB(*dbFile)
	if err != nil {
		return err
	}
	defer db.Close()

	switch action {
	case "up":
		return db.MigrateUp()
	case "down":
		return db.MigrateDown()
	case "version":
		version, dirty, err := db.MigrateVersion()
		if err != nil {
			return err
		}
		log.Printf("schema version %d (dirty=%v)", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}
}

func readJSONFile[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
