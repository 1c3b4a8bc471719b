package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"voxelkit.ai/internal/persistence/indexdb"
	persistlog "voxelkit.ai/internal/persistence/log"
	"voxelkit.ai/internal/terrain"
	"voxelkit.ai/internal/transport/preview"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/assembly.yaml", "terrain assembly config path")
		dataDir    = flag.String("data", "./data", "runtime data directory (build logs + index)")
		compress   = flag.Bool("compress", false, "compress the merged terrain (overrides the config when set)")
		serve      = flag.String("serve", "", "preview listen address, e.g. 127.0.0.1:8095 (empty to build once and exit)")
		disableDB  = flag.Bool("disable_db", false, "disable the build index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[voxbuild] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := terrain.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *compress {
		cfg.Compress = true
	}

	p := &pipeline{
		configPath: *configPath,
		builder:    terrain.NewBuilder(cfg, logger),
		buildLog:   persistlog.NewBuildLogger(*dataDir),
		logger:     logger,
	}
	defer p.buildLog.Close()

	if !*disableDB {
		idx, err := indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		p.idx = idx
	}

	ctx, cancel := signalContext()
	defer cancel()

	addr := strings.TrimSpace(*serve)
	if addr == "" {
		res, err := p.run(ctx)
		if err != nil {
			logger.Fatalf("build: %v", err)
		}
		printSummary(os.Stdout, res)
		return
	}

	p.preview = preview.NewServer(logger)
	if res, err := p.run(ctx); err != nil {
		logger.Printf("build: %v", err)
	} else {
		printSummary(os.Stdout, res)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/preview/bootstrap", p.preview.BootstrapHandler())
	mux.Handle("/preview/ws", p.preview.WSHandler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Printf("preview listening on %s (SIGHUP rebuilds)", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("http: %v", err)
			cancel()
		}
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			_ = srv.Shutdown(shutdownCtx)
			cancelShutdown()
			return
		case <-hup:
			res, err := p.run(ctx)
			if err != nil {
				logger.Printf("rebuild: %v", err)
				continue
			}
			printSummary(os.Stdout, res)
		}
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
