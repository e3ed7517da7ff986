// Command lumina-seed loads a product catalog into a running lumina server
// and runs ad-hoc searches against it.
//
//	lumina-seed --server http://localhost:8080 seed --file products.yaml
//	lumina-seed search --query "red running shoes" --top-k 5
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/lumina/internal/logger"
	"github.com/kailas-cloud/lumina/internal/version"
	"github.com/kailas-cloud/lumina/pkg/client"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		cancel()
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "lumina-seed",
		Usage:   "Seed and query a lumina catalog search server",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Base URL of the lumina API",
				Value:   "http://localhost:8080",
				EnvVars: []string{"LUMINA_URL"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Bearer token for the API",
				EnvVars: []string{"LUMINA_API_KEY"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-request timeout",
				Value: 60 * time.Second,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "seed",
				Usage:  "Upsert every item of a YAML products file",
				Action: seedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the products YAML file",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent batch uploads",
						Value: 4,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Items per batch request",
						Value: 50,
					},
				},
			},
			{
				Name:   "search",
				Usage:  "Run a text search and print the results as JSON",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Search text",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of results (0 = server default)",
					},
					&cli.StringFlag{
						Name:  "category",
						Usage: "Category filter",
					},
					&cli.BoolFlag{
						Name:  "rerank",
						Usage: "Rerank candidates with the cross-encoder",
					},
				},
			},
		},
	}
}

func newClient(c *cli.Context) (*client.Client, error) {
	api, err := client.New(c.String("server"),
		client.WithAPIKey(c.String("api-key")),
		client.WithTimeout(c.Duration("timeout")),
		client.WithUserAgent("lumina-seed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return api, nil
}

func seedCommand(c *cli.Context) error {
	logger, err := logpkg.New(logpkg.Options{Service: "lumina-seed", Env: "local", Level: c.String("log-level")})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	workers, batchSize := c.Int("workers"), c.Int("batch-size")
	if workers <= 0 {
		return fmt.Errorf("workers must be greater than 0")
	}
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}

	items, err := loadCatalog(c.String("file"))
	if err != nil {
		return err
	}

	api, err := newClient(c)
	if err != nil {
		return err
	}

	logger.Info("Seeding catalog",
		zap.String("server", c.String("server")),
		zap.String("file", c.String("file")),
		zap.Int("items", len(items)),
		zap.Int("workers", workers),
	)

	ing := &ingester{api: api, workers: workers, batchSize: batchSize, logger: logger}
	res, err := ing.Run(c.Context, items)
	logger.Info("Seeding finished",
		zap.Int64("succeeded", res.Succeeded),
		zap.Int64("failed", res.Failed),
		zap.Duration("duration", res.Duration),
	)
	if err != nil {
		return fmt.Errorf("seeding interrupted: %w", err)
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d items failed", res.Failed, len(items))
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	api, err := newClient(c)
	if err != nil {
		return err
	}

	req := client.SearchRequest{Query: c.String("query"), TopK: c.Int("top-k")}
	if cat := c.String("category"); cat != "" {
		req.Filters.Category = &cat
	}
	if c.IsSet("rerank") {
		rerank := c.Bool("rerank")
		req.Rerank = &rerank
	}

	res, err := api.Search(c.Context, req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return printJSON(c.App.Writer, res)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
