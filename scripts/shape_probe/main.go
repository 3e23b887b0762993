package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/noah-isme/sma-console/internal/models"
	"github.com/noah-isme/sma-console/internal/upstream"
	"github.com/noah-isme/sma-console/pkg/config"
)

type probe struct {
	Entity     string
	Expected   models.ResponseShape
	Actual     models.ResponseShape
	Error      error
	Duration   time.Duration
	ShapeMatch bool
}

func main() {
	var (
		baseURL string
		token   string
		only    string
		timeout time.Duration
	)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	flag.StringVar(&baseURL, "base", cfg.Upstream.BaseURL, "School backend base URL")
	flag.StringVar(&token, "token", os.Getenv("PROBE_TOKEN"), "Bearer token used for the probe")
	flag.StringVar(&only, "entities", "", "Comma separated entity names (default: all)")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	registry := models.NewEntityRegistry(models.DefaultEntities(), cfg.Upstream.LegacyDelete)
	client := upstream.New(upstream.Options{BaseURL: baseURL, Timeout: timeout}).WithToken(token)

	selected := selectEntities(registry, only)
	if len(selected) == 0 {
		log.Fatalf("no entities matched %q", only)
	}

	var (
		results    []probe
		mismatches int
	)
	for _, def := range selected {
		res := probeEntity(context.Background(), client, def)
		if res.Error != nil || !res.ShapeMatch {
			mismatches++
		}
		results = append(results, res)
	}

	printReport(results)

	fmt.Printf("Mismatched endpoints: %d of %d\n", mismatches, len(results))
	if mismatches > 0 {
		os.Exit(1)
	}
}

func selectEntities(registry *models.EntityRegistry, only string) []models.EntityDefinition {
	all := registry.All()
	if strings.TrimSpace(only) == "" {
		return all
	}
	var out []models.EntityDefinition
	for _, name := range strings.Split(only, ",") {
		if def, ok := registry.Lookup(strings.TrimSpace(name)); ok {
			out = append(out, def)
		}
	}
	return out
}

func probeEntity(ctx context.Context, client *upstream.Client, def models.EntityDefinition) probe {
	res := probe{Entity: def.Name, Expected: def.Shape}
	start := time.Now()
	raw, err := client.FetchRaw(ctx, def)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = fmt.Errorf("fetch failed: %w", err)
		return res
	}
	shape, err := upstream.DetectShape(raw)
	if err != nil {
		res.Error = err
		return res
	}
	res.Actual = shape
	res.ShapeMatch = shape == def.Shape
	return res
}

func printReport(results []probe) {
	fmt.Println("Listing Shape Report")
	fmt.Println("====================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.ShapeMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s (%s)\n", status, res.Entity, res.Duration)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Expected: %s | Actual: %s\n", res.Expected, res.Actual)
	}
}
