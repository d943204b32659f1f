// repograph encodes a repository into its planning graph and writes the
// graph document as JSON. Settings come from .repograph.yml in the
// repository root; flags override the output location.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pleaseai/repograph/internal/config"
	"github.com/pleaseai/repograph/internal/encoder"
	"github.com/pleaseai/repograph/internal/rpg"
	"github.com/pleaseai/repograph/internal/semantic"
	"github.com/pleaseai/repograph/internal/semcache"
)

func main() {
	out := flag.String("out", "", "output file (default stdout)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: repograph [-out graph.json] [root]")
		flag.PrintDefaults()
	}
	flag.Parse()

	root := "."
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}
	if err := runEncode(context.Background(), root, *out); err != nil {
		fmt.Fprintln(os.Stderr, "repograph:", err)
		os.Exit(1)
	}
}

// runEncode loads the repository's options file, runs one encode and
// writes the graph document to outPath (stdout when empty).
func runEncode(ctx context.Context, root, outPath string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	cfg := config.Load(abs)
	cfg.ApplyLogLevel()

	var cache semantic.FeatureCache
	if cfg.Cache.Path != "" {
		c, err := semcache.Open(filepath.Join(abs, cfg.Cache.Path))
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		c.SetTTL(time.Duration(cfg.EffectiveTTLDays()) * 24 * time.Hour)
		defer c.Close()
		cache = c
	}

	enc := encoder.New(nil, cache, semantic.Options{})
	res, err := enc.Encode(ctx, rpg.Config{
		Name:     filepath.Base(abs),
		RootPath: abs,
	}, cfg.EncoderOptions())
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		slog.Warn("encode.warning", "msg", w)
	}

	data, err := res.Graph.ToJSON()
	if err != nil {
		return err
	}
	if outPath == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}
