package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	_ "modernc.org/sqlite"

	"github.com/Odogo/KyoLogix/adapters/filestore"
	"github.com/Odogo/KyoLogix/adapters/nats"
	"github.com/Odogo/KyoLogix/adapters/prometheus"
	"github.com/Odogo/KyoLogix/adapters/sqlstore"
	"github.com/Odogo/KyoLogix/core/cache"
	"github.com/Odogo/KyoLogix/core/duration"
	"github.com/Odogo/KyoLogix/ports/store"
)

// === Config ===

// NOTE: for BACKEND=nats run: docker run --net=host nats:latest -js

var (
	logLevel    = slog.LevelInfo
	N           = getEnvInt("N", 100_000)
	G           = getEnvInt("G", 8)
	keySpace    = getEnvInt("KEYS", 10_000)
	readRatio   = getEnvInt("READ_PCT", 80)
	backendType = getEnv("BACKEND", "mem")
	expiration  = getEnv("EXPIRATION", "30s")
)

func getEnv(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, fmt.Sprintf("%d", fallback)))
	if err != nil {
		return fallback
	}
	return v
}

// === Domain ===

type Account struct {
	Owner   string `json:"owner"`
	Balance int64  `json:"balance"`
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	fmt.Printf("Backend: %s\n", backendType)
	fmt.Printf("Ops: %d over %d goroutines, %d keys, %d%% reads\n", N, G, keySpace, readRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Second)
	defer cancel()

	backing, cleanup := createStore(ctx, log)
	defer cleanup()

	reg := cache.NewRegistry()
	metrics := prometheus.NewCacheMetrics(promclient.NewRegistry())

	c, err := cache.New(cache.Config[string, Account]{
		Store:      backing,
		Expiration: duration.MustParse(expiration),
		Name:       "accounts",
		Log:        log,
		Registry:   reg,
		Metrics:    metrics.For("accounts"),
	})
	checkErr(err)

	// === START ===

	log.Info("==================================")
	log.Info("Starting ...")

	var (
		startAt = time.Now()
		ops     atomic.Int64
		errs    atomic.Int64
		wg      sync.WaitGroup
	)

	for g := 0; g < G; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))

			for ops.Add(1) <= int64(N) {
				key := fmt.Sprintf("acct-%d", rng.Intn(keySpace))
				if rng.Intn(100) < readRatio {
					_, _, err := c.Read(ctx, key)
					if err != nil {
						errs.Add(1)
					}
					continue
				}
				err := c.Store(ctx, key, Account{
					Owner:   key,
					Balance: rng.Int63n(1_000_000),
				})
				if err != nil {
					errs.Add(1)
				}
			}
		}(int64(g))
	}
	wg.Wait()

	// === drain ===

	drainAt := time.Now()
	checkErr(reg.ShutdownAll(ctx))
	drainTook := time.Since(drainAt)

	// === stats ===

	took := time.Since(startAt)
	runtime.GC()
	mu := getMemUsage()

	println("==========================================")
	fmt.Printf("total runtime: %.3f seconds\n", took.Seconds())
	fmt.Printf("        drain: %d ms\n", drainTook.Milliseconds())
	fmt.Printf("  avg. ops/s: %d\n", int(float64(N)/took.Seconds()))
	fmt.Printf("  store errs: %d\n", errs.Load())
	fmt.Printf("         mem: %d / %d MiB (alloc/sys)\n", mu.Alloc/1024/1024, mu.Sys/1024/1024)
}

// === stats helpers ===

type MemUsage struct {
	Alloc      uint64 // bytes allocated and not yet freed (heap)
	TotalAlloc uint64 // cumulative bytes allocated
	Sys        uint64 // total bytes obtained from OS
	NumGC      uint32 // gc cycles
}

func getMemUsage() MemUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemUsage{
		Alloc:      m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
	}
}

// === Backends ===

func createStore(ctx context.Context, log *slog.Logger) (store.Store[string, Account], func()) {
	switch backendType {
	case "sqlite":
		db, err := sql.Open("sqlite", "file:loadtest.db")
		checkErr(err)
		db.SetMaxOpenConns(1)
		s, err := sqlstore.New[Account](ctx, sqlstore.Config{DB: db, Table: "accounts"})
		checkErr(err)
		return s, func() { _ = db.Close() }

	case "file":
		dir, err := os.MkdirTemp("", "loadtest-*")
		checkErr(err)
		log.Info("file store", slog.String("dir", dir))
		s, err := filestore.New[Account](filestore.Config{Dir: dir})
		checkErr(err)
		return s, func() { _ = os.RemoveAll(dir) }

	case "nats":
		s, err := nats.NewStore[Account](ctx, nats.StoreConfig{Bucket: "loadtest_accounts"})
		checkErr(err)
		return s, s.Close

	default:
		return store.NewMemStore[string, Account](), func() {}
	}
}

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}
