// Package main provides the world content seeder. It validates a world
// YAML file and imports its rooms and exits into the database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/samud/samud/internal/config"
	"github.com/samud/samud/internal/game/world"
	"github.com/samud/samud/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	worldPath := flag.String("world", "content/world.yaml", "path to world content file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	data, err := os.ReadFile(*worldPath)
	if err != nil {
		log.Fatalf("reading world file: %v", err)
	}
	def, err := world.ParseDefinition(data)
	if err != nil {
		log.Fatalf("parsing world file: %v", err)
	}

	// Validate before touching the database.
	graph, err := def.Graph()
	if err != nil {
		log.Fatalf("invalid world: %v", err)
	}

	start := time.Now()
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewWorldRepository(pool.DB(), cfg.World.StartRoom)
	if err := repo.ImportWorld(ctx, def); err != nil {
		log.Fatalf("importing world: %v", err)
	}

	fmt.Printf("seeded %d rooms and %d exits in %s\n",
		graph.RoomCount(), len(def.Exits), time.Since(start).Round(time.Millisecond))
}
