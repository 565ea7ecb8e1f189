// Command gridsim runs the faction power-grid simulation standalone: it
// seeds a demo grid, drives the coordinator tick, serves the observation
// API, and autosaves to SQLite.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ironveil/fluxgrid/internal/api"
	"github.com/ironveil/fluxgrid/internal/engine"
	"github.com/ironveil/fluxgrid/internal/grid"
	"github.com/ironveil/fluxgrid/internal/persistence"
)

const autosaveKeep = 10

func main() {
	var (
		dbPath   = flag.String("db", "data/fluxgrid.db", "SQLite save database path")
		apiPort  = flag.Int("port", 8080, "observation API port")
		interval = flag.Duration("interval", engine.DefaultTickInterval, "tick interval (floor 16ms)")
		seed     = flag.Int64("seed", 42, "daylight noise seed")
		autosave = flag.Duration("autosave", 30*time.Second, "autosave period")
		fresh    = flag.Bool("fresh", false, "ignore saved state and seed a new grid")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("fluxgrid — faction power-grid simulation")

	os.MkdirAll("data", 0755)
	db, err := persistence.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", *dbPath)

	coord := engine.NewCoordinator(engine.Config{
		TickInterval: *interval,
		Seed:         *seed,
	})

	// Demo economy: each faction starts with a fixed treasury; builds that
	// cost more than the remaining balance are vetoed.
	treasury := map[grid.Faction]float64{1: 5000, 2: 5000}
	coord.SetResourceHook(func(f grid.Faction, cost map[string]float64) bool {
		total := 0.0
		for _, v := range cost {
			total += v
		}
		if treasury[f] < total {
			return false
		}
		treasury[f] -= total
		return true
	})
	coord.SetProductionHook(func(d grid.DistrictID, mul float64) {
		slog.Info("production update", "district", d, "income_multiplier", mul)
	})

	restored := false
	if !*fresh {
		snap, ok, err := db.LoadLatest()
		if err != nil {
			slog.Error("failed to load save", "error", err)
			os.Exit(1)
		}
		if ok {
			coord.Restore(snap)
			restored = true
			slog.Info("resumed from save", "tick", snap.Tick, "sim_time", snap.SimTime)
		}
	}
	if !restored {
		slog.Info("no saved state, seeding demo grid")
		seedDemoGrid(coord)
	}

	apiServer := &api.Server{Coord: coord, DB: db, Port: *apiPort}
	apiServer.Start()

	// Autosave loop: snapshot plus the live event log.
	stopSave := make(chan struct{})
	go func() {
		ticker := time.NewTicker(*autosave)
		defer ticker.Stop()
		var archived uint64
		for {
			select {
			case <-ticker.C:
				saveAll(db, coord, &archived)
			case <-stopSave:
				return
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		close(stopSave)
		coord.Stop()
	}()

	fmt.Printf("fluxgrid running. API: http://localhost:%d/api/v1/summary\n", *apiPort)
	fmt.Println("Ctrl+C to stop.")

	coord.Run()

	slog.Info("final save...")
	var archived uint64
	saveAll(db, coord, &archived)
}

// saveAll writes a snapshot, archives events appended since the last save,
// and prunes old saves.
func saveAll(db *persistence.DB, coord *engine.Coordinator, archived *uint64) {
	var newEvents []engine.Event
	coord.WithLock(func() {
		log := coord.Grid().Events()
		total := log.Total()
		if total > *archived {
			n := int(total - *archived)
			newEvents = log.Recent(n)
			*archived = total
		}
	})
	if err := db.AppendEvents(newEvents); err != nil {
		slog.Error("event archive failed", "error", err)
	}

	if _, err := db.SaveSnapshot(coord.Snapshot()); err != nil {
		slog.Error("autosave failed", "error", err)
		return
	}
	if err := db.PruneSaves(autosaveKeep); err != nil {
		slog.Error("save prune failed", "error", err)
	}
}

// seedDemoGrid builds a two-faction starting grid with enough structure to
// exercise cascades and load shedding from the first tick.
func seedDemoGrid(coord *engine.Coordinator) {
	coord.WithLock(func() {
		g := coord.Grid()

		for _, f := range []grid.Faction{1, 2} {
			fx := float64(f) * 100

			fusion, _ := g.CreateFusionPlant(f, grid.Position{X: fx, Y: 0})
			solarA, _ := g.CreateSolarPlant(f, grid.Position{X: fx + 10, Y: 5})
			solarB, _ := g.CreateSolarPlant(f, grid.Position{X: fx + 10, Y: -5})

			city, _ := g.CreateDistrict(f, 120)
			industry, _ := g.CreateDistrict(f, 80)
			outpost, _ := g.CreateDistrict(f, 30)

			g.CreatePowerLine(fusion, city, 150)
			g.CreatePowerLine(fusion, industry, 100)
			g.CreatePowerLine(solarA, city, 60)
			g.CreatePowerLine(solarB, outpost, 40)

			consumers := coord.Consumers()
			consumers.AddConsumer(f, grid.ConsumerFactory, 0, industry)
			consumers.AddConsumer(f, grid.ConsumerFactory, 0, industry)
			consumers.AddConsumer(f, grid.ConsumerInfrastructure, 0, city)
			consumers.AddConsumer(f, grid.ConsumerDefense, 0, outpost)
			consumers.AddConsumer(f, grid.ConsumerResearch, 0, city)
			consumers.AddConsumer(f, grid.ConsumerResearch, 25, grid.InvalidDistrict)
		}

		g.Recalculate()
	})
	slog.Info("demo grid seeded", "factions", 2)
}
