package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"podcast-insights/pkg/config"
	"podcast-insights/pkg/discovery"
	"podcast-insights/pkg/logger"
)

// Prints the candidates the next batch would process, without processing them.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Environment: cfg.Environment, Output: os.Stderr})

	q := discovery.WindowQuery(cfg.Search.Query, cfg.Window(), cfg.Search.MaxResults, time.Now())
	candidates, err := discovery.FromConfig(cfg, log).Discover(context.Background(), q)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover candidates: %v\n", err)
		os.Exit(1)
	}

	// Print first 10 entries
	maxEntries := 10
	if len(candidates) < maxEntries {
		maxEntries = len(candidates)
	}

	fmt.Printf("Found %d candidates for %q since %s. Showing first %d:\n\n",
		len(candidates), q.Term, q.PublishedAfter.Format("2006-01-02"), maxEntries)

	for i := 0; i < maxEntries; i++ {
		c := candidates[i]
		fmt.Printf("Candidate %d:\n", i+1)
		fmt.Printf("  URL: %s\n", c.URL)
		if c.Title != "" {
			fmt.Printf("  Title: %s\n", c.Title)
		}
		if c.PublishedAt != nil {
			fmt.Printf("  Published: %s\n", c.PublishedAt.Format(time.RFC3339))
		}
		fmt.Println()
	}
}
