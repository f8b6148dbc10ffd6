package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"towerkeep.ai/internal/emit"
	"towerkeep.ai/internal/persistence/indexdb"
	"towerkeep.ai/internal/sim/catalogs"
	"towerkeep.ai/internal/sim/generate"
	"towerkeep.ai/internal/sim/tuning"
	"towerkeep.ai/internal/transport/observer"
	"towerkeep.ai/internal/transport/ws"
	"towerkeep.ai/internal/worldio"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		worldURL    = flag.String("world", "http://localhost:9000", "world server base url (GDMC-HTTP)")
		transport   = flag.String("transport", "http", "edit transport: http or ws")
		wsURL       = flag.String("ws_url", "ws://localhost:8081/v1/edits", "edit relay websocket url (with -transport ws)")
		configDir   = flag.String("configs", "./configs", "config directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir     = flag.String("data", "./data", "runtime data directory (plan archives, journals, index)")
		seed        = flag.Int64("seed", 0, "override the tuning seed (0 keeps it)")
		dryRun      = flag.Bool("dry_run", false, "plan, validate and archive without writing to the world")
		metricsAddr = flag.String("metrics_addr", "", "prometheus listen address (empty to disable)")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite run index")
		materials   = flag.Bool("materials", false, "also read surface materials (slower)")
		relayListen = flag.String("relay_listen", "", "run an edit relay on this address in front of -world instead of generating")
		obsListen   = flag.String("observer_listen", "", "progress observer http listen address (empty to disable)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[towerkeep] ", log.LstdFlags|log.Lmicroseconds)

	if *transport != "http" && *transport != "ws" {
		fmt.Fprintln(os.Stderr, "invalid -transport:", *transport)
		return 2
	}

	client := worldio.NewHTTPClient(*worldURL)
	client.Materials = *materials

	ctx, cancel := signalContext()
	defer cancel()

	if addr := strings.TrimSpace(*relayListen); addr != "" {
		return runRelay(ctx, addr, client, logger)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Printf("load catalogs: %v", err)
		return 1
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Printf("load tuning: %v", err)
			return 1
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.Seed = *seed
	}
	if err := tune.Check(); err != nil {
		fmt.Fprintln(os.Stderr, "tuning:", err)
		return 2
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(indexdb.Path(*dataDir))
		if err != nil {
			logger.Printf("open index: %v", err)
			return 1
		}
		defer func() {
			st := idx.Stats()
			if st.DropBatchesTotal > 0 {
				logger.Printf("index dropped %d batch rows", st.DropBatchesTotal)
			}
			_ = idx.Close()
		}()
	}

	var metrics *emit.Metrics
	if *metricsAddr != "" {
		metrics = emit.NewMetrics(prometheus.DefaultRegisterer)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go serve(*metricsAddr, mux, "metrics", logger)
	}

	var obs *observer.Server
	if addr := strings.TrimSpace(*obsListen); addr != "" {
		obs = observer.NewServer(logger)
		mux := http.NewServeMux()
		mux.Handle("/v1/observer/bootstrap", obs.BootstrapHandler())
		mux.Handle("/v1/observer/ws", obs.WSHandler())
		go serve(addr, mux, "observer", logger)
	}

	opts := generate.Options{
		Tuning:   tune,
		Catalogs: cats,
		Reader:   client,
		DryRun:   *dryRun,
		DataDir:  *dataDir,
		Index:    idx,
		Metrics:  metrics,
		Observer: obs,
		Logger:   logger,
		RunID:    uuid.NewString(),
	}
	if !*dryRun {
		switch *transport {
		case "http":
			opts.Writer = client
		case "ws":
			w, err := worldio.DialWS(ctx, *wsURL, opts.RunID)
			if err != nil {
				logger.Printf("dial relay: %v", err)
				return 1
			}
			defer w.Close()
			opts.Writer = w
		}
	}

	rep, err := generate.New(opts).Generate(ctx)
	out, _ := json.MarshalIndent(rep.Wire(), "", "  ")
	fmt.Println(string(out))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Printf("interrupted")
		}
		return 1
	}
	return 0
}

func runRelay(ctx context.Context, addr string, w worldio.Writer, logger *log.Logger) int {
	relay := ws.NewRelay(w, logger)
	mux := http.NewServeMux()
	mux.Handle("/v1/edits", relay.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Printf("relay listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("relay: %v", err)
		return 1
	}
	return 0
}

func serve(addr string, h http.Handler, name string, logger *log.Logger) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	logger.Printf("%s listening on %s", name, addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("%s: %v", name, err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
