// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/sibyl"
	"github.com/poiesic/sibyl/backend"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/knowledge"
)

func main() {
	app := &cli.App{
		Name:  "sibyl",
		Usage: "Resilient retrieval pipeline for conversational queries",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "Answer a single query and exit",
				ArgsUsage: "<query>",
				Action:    askCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:  "session",
						Usage: "Session identifier for conversation history",
						Value: "cli",
					},
				),
			},
			{
				Name:   "chat",
				Usage:  "Interactive conversation loop on stdin",
				Action: chatCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:  "session",
						Usage: "Session identifier for conversation history",
						Value: "cli",
					},
				),
			},
			{
				Name:      "ingest",
				Usage:     "Load documents from JSON lines files into the store",
				ArgsUsage: "<file>...",
				Action:    ingestCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:  "source",
						Usage: "Source label applied to documents without one",
						Value: "ingest",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to embed per batch",
						Value: 32,
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "host",
			Usage: "OpenAI-compatible service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "generation-model",
			Usage: "Generation model name",
			Value: "qwen2.5:3b",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "API token for the model host",
			EnvVars: []string{"SIBYL_TOKEN"},
			Value:   "none",
		},
		&cli.StringFlag{
			Name:    "tavily-key",
			Usage:   "Tavily API key; enables web search when set",
			EnvVars: []string{"TAVILY_API_KEY"},
		},
	}
}

func openService(c *cli.Context) (*sibyl.Service, error) {
	cfg := backend.NewConfig(
		backend.WithHost(c.String("host")),
		backend.WithGenerationModel(c.String("generation-model")),
		backend.WithEmbeddingModel(c.String("embedding-model")),
		backend.WithToken(c.String("token")),
	)

	opts := []sibyl.ServiceOption{sibyl.WithBackendConfig(cfg)}
	if key := c.String("tavily-key"); key != "" {
		opts = append(opts, sibyl.WithTavilyAPIKey(key))
	}

	return sibyl.NewService(c.String("db"), opts...)
}

func askCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query is required")
	}

	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	result, err := svc.Stream(c.Context, query, c.String("session"), func(chunk string) error {
		fmt.Print(chunk)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Fprintf(os.Stderr, "\n[mode: %s]\n", result.Mode)
	return nil
}

func chatCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	session := c.String("session")
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Fprintln(os.Stderr, "Type a question, or an empty line to exit.")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			break
		}

		_, err := svc.Stream(c.Context, query, session, func(chunk string) error {
			fmt.Print(chunk)
			return nil
		})
		if err != nil {
			if rl, ok := core.AsRateLimitError(err); ok {
				fmt.Fprintf(os.Stderr, "rate limited, retry in %s\n", rl.RetryAfter)
				continue
			}
			return err
		}
		fmt.Println()
	}
	return scanner.Err()
}

// ingestDocument is the JSON lines record accepted by the ingest command.
type ingestDocument struct {
	Content     string            `json:"content"`
	Source      string            `json:"source"`
	Title       string            `json:"title"`
	PublishedAt time.Time         `json:"published_at"`
	Metadata    map[string]string `json:"metadata"`
}

func ingestCommand(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return fmt.Errorf("at least one input file is required")
	}
	if c.Int("batch-size") <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}

	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	ingestor, err := svc.NewIngestor(knowledge.WithBatchSize(c.Int("batch-size")))
	if err != nil {
		return fmt.Errorf("failed to create ingestor: %w", err)
	}
	defer ingestor.Release()

	defaultSource := c.String("source")
	total := 0

	for _, path := range c.Args().Slice() {
		docs, err := readDocuments(path, defaultSource)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if len(docs) == 0 {
			fmt.Fprintf(os.Stderr, "%s: no documents\n", path)
			continue
		}

		if err := ingestor.Ingest(context.Background(), docs...); err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}
		total += len(docs)
		fmt.Fprintf(os.Stderr, "%s: %d documents\n", path, len(docs))
	}

	fmt.Fprintf(os.Stderr, "ingested %d documents\n", total)
	return nil
}

func readDocuments(path, defaultSource string) ([]*core.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []*core.Document
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var rec ingestDocument
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.Source == "" {
			rec.Source = defaultSource
		}
		docs = append(docs, &core.Document{
			Content:     rec.Content,
			Source:      rec.Source,
			Title:       rec.Title,
			PublishedAt: rec.PublishedAt,
			Metadata:    rec.Metadata,
		})
	}
	return docs, scanner.Err()
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
