package main

import (
	"context"
	"fmt"
	logger "log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/OpenTransitTools/gtfsdelay/app/gtfs-delay/consolidate"
	"github.com/OpenTransitTools/gtfsdelay/app/gtfs-delay/ingest"
	"github.com/OpenTransitTools/gtfsdelay/app/gtfs-delay/progress"
	"github.com/OpenTransitTools/gtfsdelay/business/data/delay"
	"github.com/OpenTransitTools/gtfsdelay/business/data/gtfs"
	"github.com/OpenTransitTools/gtfsdelay/foundation/database"
	"github.com/OpenTransitTools/gtfsdelay/foundation/workpool"
	"github.com/ardanlabs/conf"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

var build = "develop"

const prefix = "GTFS_DELAY"

func main() {
	log := logger.New(os.Stdout, "GTFS_DELAY : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

type config struct {
	conf.Version
	Args conf.Args
	DB   struct {
		User       string `conf:"default:postgres"`
		Password   string `conf:"default:postgres,noprint"`
		Host       string `conf:"default:0.0.0.0"`
		Name       string `conf:"default:postgres"`
		DisableTLS bool   `conf:"default:true"`
	}
	Ingest struct {
		DataDir   string  `conf:"default:data"`
		AgencyIds []int64 `conf:"default:326"`
		PoolSize  int     `conf:"default:0,help:number of ingestion workers or 0 for half the cpus"`
		BatchSize int     `conf:"default:500"`
		Truncate  bool    `conf:"default:false"`
		Timezone  string  `conf:"default:Europe/Warsaw"`
	}
	Consolidate struct {
		PoolSize        int      `conf:"default:4"`
		TripConcurrency int      `conf:"default:4"`
		ServiceDates    []string `conf:"help:only consolidate these YYYY-MM-DD dates separated by semicolons"`
	}
	NATS struct {
		URL             string `conf:"help:publish progress messages when set"`
		ProgressSubject string `conf:"default:gtfs-delay.progress"`
	}
	Web struct {
		MetricsPort int `conf:"default:0,help:serve /metrics on this port when not 0"`
	}
}

func run(log *logger.Logger) error {
	// a missing .env file is fine, configuration then comes from the environment and flags
	_ = godotenv.Load()

	var cfg config
	cfg.Version.SVN = build
	cfg.Version.Desc = "Record and consolidate stop delays from recorded gtfs-rt trip updates"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			printUsage(&cfg)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	command := cfg.Args.Num(0)
	switch command {
	case "ingest", "consolidate", "run", "dates":
	default:
		printUsage(&cfg)
		return nil
	}

	// =========================================================================
	// App Starting

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	location, err := time.LoadLocation(cfg.Ingest.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone %s: %w", cfg.Ingest.Timezone, err)
	}
	serviceDates, err := parseServiceDates(cfg.Consolidate.ServiceDates)
	if err != nil {
		return err
	}

	// Make a context that is cancelled on an interrupt or terminate signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// =========================================================================
	// Progress reporting

	collector := progress.NewCollector()
	var webWg sync.WaitGroup
	if cfg.Web.MetricsPort > 0 {
		webCtx, stopWeb := context.WithCancel(ctx)
		progress.StartWebService(webCtx, log, &webWg, collector, cfg.Web.MetricsPort)
		defer func() {
			stopWeb()
			webWg.Wait()
		}()
	}

	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = nats.Connect(cfg.NATS.URL, nats.Name("gtfs-delay"))
		if err != nil {
			return fmt.Errorf("connecting to nats at %s: %w", cfg.NATS.URL, err)
		}
		defer natsConn.Close()
	}
	reporter := progress.NewReporter(log, collector, natsConn, cfg.NATS.ProgressSubject)

	// =========================================================================
	// Database, one connection pool per worker

	dbConfig := database.Config{
		User:         cfg.DB.User,
		Password:     cfg.DB.Password,
		Host:         cfg.DB.Host,
		Name:         cfg.DB.Name,
		DisableTLS:   cfg.DB.DisableTLS,
		MaxOpenConns: cfg.Consolidate.TripConcurrency,
	}
	newStores := delay.DBStoresFactory(log, dbConfig)

	ingestOptions := ingest.Options{
		DataDir:   cfg.Ingest.DataDir,
		AgencyIds: cfg.Ingest.AgencyIds,
		BatchSize: cfg.Ingest.BatchSize,
		Location:  location,
		Truncate:  cfg.Ingest.Truncate,
	}
	consolidateOptions := consolidate.Options{
		Location:        location,
		TripConcurrency: cfg.Consolidate.TripConcurrency,
		ServiceDates:    serviceDates,
	}

	switch command {
	case "ingest":
		return runIngest(ctx, log, ingestOptions, cfg.Ingest.PoolSize, newStores, collector, reporter)
	case "consolidate":
		return runConsolidate(ctx, log, consolidateOptions, cfg.Consolidate.PoolSize, newStores, collector, reporter)
	case "run":
		err = runIngest(ctx, log, ingestOptions, cfg.Ingest.PoolSize, newStores, collector, reporter)
		if err != nil {
			return err
		}
		return runConsolidate(ctx, log, consolidateOptions, cfg.Consolidate.PoolSize, newStores, collector, reporter)
	case "dates":
		dates, err := consolidate.ListServiceDates(ctx, newStores)
		if err != nil {
			return err
		}
		for _, date := range dates {
			fmt.Println(gtfs.FormatServiceDate(date))
		}
	}
	return nil
}

func runIngest(ctx context.Context,
	log *logger.Logger,
	opts ingest.Options,
	poolSize int,
	newStores delay.StoresFactory,
	collector *progress.Collector,
	reporter *progress.Reporter) error {

	start := time.Now()
	onSettled := progress.OnSettled(reporter, "ingest", func(folder string) string { return folder })
	outcomes, err := ingest.Run(ctx, log, opts, poolSize, newStores, collector, onSettled)
	if err != nil {
		return fmt.Errorf("ingesting snapshots: %w", err)
	}
	succeeded, failed := workpool.Counts(outcomes)
	log.Printf("main: ingested %d artifacts, %d failed, in %v", succeeded, failed, time.Since(start))
	return ctx.Err()
}

func runConsolidate(ctx context.Context,
	log *logger.Logger,
	opts consolidate.Options,
	poolSize int,
	newStores delay.StoresFactory,
	collector *progress.Collector,
	reporter *progress.Reporter) error {

	start := time.Now()
	onSettled := progress.OnSettled(reporter, "consolidate", gtfs.FormatServiceDate)
	outcomes, err := consolidate.Run(ctx, log, opts, poolSize, newStores, collector, onSettled)
	if err != nil {
		return fmt.Errorf("consolidating observations: %w", err)
	}
	succeeded, failed := workpool.Counts(outcomes)
	log.Printf("main: consolidated %d service dates, %d failed, in %v", succeeded, failed, time.Since(start))
	return ctx.Err()
}

//parseServiceDates parses YYYY-MM-DD dates into service date keys
func parseServiceDates(dates []string) ([]time.Time, error) {
	var results []time.Time
	for _, date := range dates {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service date %q: %w", date, err)
		}
		results = append(results, gtfs.ServiceDateKey(parsed))
	}
	return results, nil
}

func printUsage(cfg *config) {
	fmt.Println("ingest: record delay observations from every snapshot artifact in the data directory")
	fmt.Println("consolidate: keep one observation per trip stop for each service date")
	fmt.Println("run: ingest then consolidate")
	fmt.Println("dates: list service dates with observations")
	usage, err := conf.Usage(prefix, cfg)
	if err != nil {
		fmt.Printf("generating config usage: %v\n", err)
		return
	}
	fmt.Println(usage)
}
