// Command fetch-catalogue downloads the pedal listing to a local file so the
// server can start without reaching the network.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/pedalrank/internal/domain/catalogue"
	"github.com/okian/pedalrank/pkg/logger"
)

const defaultTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	var (
		url     = flag.String("url", envOr("PEDALRANK_CATALOGUE_URL", catalogue.DefaultURL), "Catalogue URL")
		output  = flag.String("output", envOr("PEDALRANK_CATALOGUE_FILE", "pedals.json"), "Destination file")
		timeout = flag.Duration("timeout", defaultTimeout, "Download timeout")
		strict  = flag.Bool("strict", false, "Exit non-zero when the download fails")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := fetch(ctx, catalogue.NewLoader(
		catalogue.WithURL(*url),
		catalogue.WithTimeout(*timeout),
	), *output)
	if err != nil {
		// The existing file (or the built-in list) stays in use.
		log.Warn(ctx, "catalogue not updated", logger.String("url", *url), logger.Error(err))
		if *strict {
			os.Exit(1)
		}
		return
	}
	log.Info(ctx, "catalogue saved", logger.String("path", *output), logger.Int("pedals", n))
}

// fetch downloads the listing, checks that it parses into at least one pedal
// and only then replaces path. It returns the pedal count.
func fetch(ctx context.Context, l *catalogue.Loader, path string) (int, error) {
	body, err := l.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	pedals, err := catalogue.Parse(body)
	if err != nil {
		return 0, fmt.Errorf("validate: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("replace: %w", err)
	}
	return len(pedals), nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
