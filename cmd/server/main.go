package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"proxiverse.dev/internal/persistence/indexdb"
	persistlog "proxiverse.dev/internal/persistence/log"
	"proxiverse.dev/internal/sim/tuning"
	"proxiverse.dev/internal/sim/world"
	"proxiverse.dev/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8765", "http listen address")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		seed       = flag.Int64("seed", 1337, "simulation seed")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite tick/audit index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	w, err := world.New(worldConfig(tune, *seed), logger)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	_ = os.MkdirAll(*dataDir, 0o755)

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.Open(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
	}

	tickLog := persistlog.NewTickLogger(*dataDir)
	auditLog := persistlog.NewAuditLogger(*dataDir)
	defer tickLog.Close()
	defer auditLog.Close()
	w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(w))
	mux.HandleFunc("/", statusHandler(w, *addr))
	mux.HandleFunc("/status", statusHandler(w, *addr))
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{
			Tick:    w.CurrentTick(),
			Metrics: w.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/ws", ws.NewServer(w, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (ws endpoint /ws)", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func worldConfig(t tuning.Tuning, seed int64) world.Config {
	return world.Config{
		Width:            t.WorldWidth,
		Height:           t.WorldHeight,
		TickMs:           t.TickMs,
		SpawnEveryTicks:  t.SpawnEveryTicks,
		MaxResources:     t.MaxResources,
		SpawnQuantityMin: t.SpawnQuantityMin,
		SpawnQuantityMax: t.SpawnQuantityMax,
		HarvestPerAction: t.HarvestPerAction,
		CraftOreCost:     t.Craft.OreCost,
		CraftFuelCost:    t.Craft.FuelCost,
		CraftYield:       t.Craft.Yield,
		Seed:             seed,
	}
}

func metricsHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := w.Metrics()
		tick := w.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		fmt.Fprintf(rw, "# HELP proxiverse_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE proxiverse_world_tick gauge\n")
		fmt.Fprintf(rw, "proxiverse_world_tick %d\n", tick)

		fmt.Fprintf(rw, "# HELP proxiverse_world_agents Current number of agents in the world.\n")
		fmt.Fprintf(rw, "# TYPE proxiverse_world_agents gauge\n")
		fmt.Fprintf(rw, "proxiverse_world_agents %d\n", m.Agents)

		fmt.Fprintf(rw, "# HELP proxiverse_world_resources Current number of resource deposits.\n")
		fmt.Fprintf(rw, "# TYPE proxiverse_world_resources gauge\n")
		fmt.Fprintf(rw, "proxiverse_world_resources %d\n", m.Resources)

		fmt.Fprintf(rw, "# HELP proxiverse_world_clients Current number of connected clients.\n")
		fmt.Fprintf(rw, "# TYPE proxiverse_world_clients gauge\n")
		fmt.Fprintf(rw, "proxiverse_world_clients %d\n", m.Clients)

		fmt.Fprintf(rw, "# HELP proxiverse_world_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE proxiverse_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "proxiverse_world_queue_depth{queue=%q} %d\n", "inbox", m.Queues.Inbox)
		fmt.Fprintf(rw, "proxiverse_world_queue_depth{queue=%q} %d\n", "join", m.Queues.Join)
		fmt.Fprintf(rw, "proxiverse_world_queue_depth{queue=%q} %d\n", "leave", m.Queues.Leave)

		fmt.Fprintf(rw, "# HELP proxiverse_world_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE proxiverse_world_step_ms gauge\n")
		fmt.Fprintf(rw, "proxiverse_world_step_ms %.3f\n", m.StepMS)
	}
}

// statusHandler serves the human-facing status page. It asks the world loop
// for a consistent snapshot and times out rather than block on a wedged sim.
func statusHandler(w *world.World, addr string) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "/status" {
			http.NotFound(rw, r)
			return
		}
		resp := make(chan world.StatusSnapshot, 1)
		select {
		case w.Status() <- world.StatusRequest{Resp: resp}:
		case <-time.After(2 * time.Second):
			http.Error(rw, "world busy", http.StatusServiceUnavailable)
			return
		}
		var snap world.StatusSnapshot
		select {
		case snap = <-resp:
		case <-time.After(2 * time.Second):
			http.Error(rw, "world busy", http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(rw, statusPageHTML,
			wsURL(addr), snap.Tick, snap.Width, snap.Height, snap.Resources, snap.Clients)
	}
}

func wsURL(addr string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "ws://" + host + "/ws"
}

const statusPageHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Proxiverse Server Status</title>
  <style>
    body { font-family: Arial, sans-serif; margin: 40px; }
    .status { background: #f0f0f0; padding: 20px; border-radius: 5px; }
    .connected { color: green; }
    code { background: #f0f0f0; padding: 2px 4px; }
  </style>
</head>
<body>
  <h1>Proxiverse AI Arena</h1>
  <div class="status">
    <h2>Server Status: <span class="connected">Online</span></h2>
    <p><strong>WebSocket URL:</strong> <code>%s</code></p>
    <p><strong>World Tick:</strong> %d</p>
    <p><strong>World Size:</strong> %dx%d</p>
    <p><strong>Total Resources:</strong> %d</p>
    <p><strong>Connected Agents:</strong> %d</p>
  </div>
  <h3>Available Actions</h3>
  <ul>
    <li><code>{"action": "move", "params": {"dx": 1, "dy": 0}}</code> - Move agent</li>
    <li><code>{"action": "harvest", "params": {}}</code> - Harvest resources</li>
    <li><code>{"action": "craft", "params": {}}</code> - Craft components</li>
  </ul>
</body>
</html>
`

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

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type multiTickLogger struct {
	a world.TickLogger
	b *indexdb.SQLiteIndex
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a world.AuditLogger
	b *indexdb.SQLiteIndex
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
