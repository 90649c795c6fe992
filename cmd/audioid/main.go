// Command audioid is the reference CLI for the fingerprinting engine: it
// ingests reference tracks into an Index Store and identifies query clips
// against them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/shoresong/audioid/internal/config"
	"github.com/shoresong/audioid/internal/logx"
	"github.com/shoresong/audioid/pkg/engine"
	"github.com/shoresong/audioid/pkg/index"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ingest":
		runIngest(os.Args[2:])
	case "identify":
		runIdentify(os.Args[2:])
	case "list":
		runList(os.Args[2:])
	case "delete":
		runDelete(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: audioid <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  ingest   -file <path> -title <title> -artist <artist>")
	fmt.Println("  identify -file <path>")
	fmt.Println("  list")
	fmt.Println("  delete   -track <id>")
	fmt.Println("  stats")
}

func loadEngine(configPath, dbPath string) (*engine.Engine, *index.Store, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}
	if dbPath != "" {
		cfg.Index.StoragePath = dbPath
	}

	store, err := index.Open(cfg.Index.StoragePath)
	if err != nil {
		return nil, nil, err
	}

	log := logx.NewDevelopment()
	return engine.New(cfg, log, store), store, nil
}

func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	file := fs.String("file", "", "path to the audio file to ingest")
	title := fs.String("title", "", "track title")
	artist := fs.String("artist", "", "track artist")
	configPath := fs.String("config", "", "path to a YAML config file")
	dbPath := fs.String("db", "", "path to the index database")
	fs.Parse(args)

	if *file == "" || *title == "" {
		fmt.Println("ingest requires -file and -title")
		os.Exit(1)
	}

	e, store, err := loadEngine(*configPath, *dbPath)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	trackID, err := e.Ingest(context.Background(), *file, *title, *artist)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("ingested track %s\n", trackID)
}

func runIdentify(args []string) {
	fs := flag.NewFlagSet("identify", flag.ExitOnError)
	file := fs.String("file", "", "path to the audio clip to identify")
	configPath := fs.String("config", "", "path to a YAML config file")
	dbPath := fs.String("db", "", "path to the index database")
	fs.Parse(args)

	if *file == "" {
		fmt.Println("identify requires -file")
		os.Exit(1)
	}

	e, store, err := loadEngine(*configPath, *dbPath)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	result, err := e.Identify(context.Background(), *file)
	if err != nil {
		fatal(err)
	}
	if result == nil {
		fmt.Println("no match")
		return
	}
	fmt.Printf("match: %s by %s (score=%d, offset=%.2fs)\n", result.Track.Title, result.Track.Artist, result.Score, result.OffsetSec)
	if len(result.Candidates) > 1 {
		fmt.Println("other candidates:")
		for _, c := range result.Candidates[1:] {
			fmt.Printf("  %s (score=%d, total_matched=%d)\n", c.TrackID, c.Score, c.TotalMatched)
		}
	}
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	dbPath := fs.String("db", "", "path to the index database")
	fs.Parse(args)

	e, store, err := loadEngine(*configPath, *dbPath)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	tracks, err := e.List(context.Background())
	if err != nil {
		fatal(err)
	}
	for _, t := range tracks {
		fmt.Printf("%s\t%s\t%s\t%d fingerprints\n", t.ID, t.Title, t.Artist, t.FingerprintCount)
	}
}

func runDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	trackID := fs.String("track", "", "track id to delete")
	configPath := fs.String("config", "", "path to a YAML config file")
	dbPath := fs.String("db", "", "path to the index database")
	fs.Parse(args)

	if *trackID == "" {
		fmt.Println("delete requires -track")
		os.Exit(1)
	}

	e, store, err := loadEngine(*configPath, *dbPath)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	if err := e.Delete(context.Background(), *trackID); err != nil {
		fatal(err)
	}
	fmt.Printf("deleted track %s\n", *trackID)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	dbPath := fs.String("db", "", "path to the index database")
	fs.Parse(args)

	e, store, err := loadEngine(*configPath, *dbPath)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	stats, err := e.Stats(context.Background())
	if err != nil {
		fatal(err)
	}
	fmt.Printf("tracks: %d, fingerprints: %d, bytes: %d\n", stats.TrackCount, stats.FingerprintCount, stats.Bytes)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
