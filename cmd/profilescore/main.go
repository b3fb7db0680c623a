package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"profilescore/internal/models"
	"profilescore/pkg/analysis"
	"profilescore/pkg/config"
	"profilescore/pkg/scoring"
)

func main() {
	// Parse command line arguments
	metric := flag.String("metric", "replicating-target",
		"Metric to compute: replicating-moa, replicating-target or matching-target")
	configPath := flag.String("config", "profilescore.yaml", "Path to YAML configuration file")
	batchPath := flag.String("batch", "", "Batch directory containing per-plate profile files")
	plates := flag.String("plates", "", "Comma-separated plate names")
	batchPath2 := flag.String("batch2", "", "Second batch directory (matching-target only)")
	plates2 := flag.String("plates2", "", "Comma-separated plate names of the second batch (matching-target only)")
	modality1 := flag.String("modality", "Compounds", "Modality label of the first batch (matching-target only)")
	modality2 := flag.String("modality2", "CRISPR", "Modality label of the second batch (matching-target only)")
	sphere := flag.String("sphere", "", "Sphering granularity: none, plate or batch (overrides config)")
	how := flag.String("how", "", "Replicating comparison mode: right, left or both (overrides config)")
	suffix := flag.String("suffix", "", "Plate file suffix (overrides config)")
	nSamples := flag.Int("samples", 0, "Null distribution size (overrides config)")
	seed := flag.Int64("seed", -1, "Random seed for null sampling (overrides config)")
	output := flag.String("output", "", "Scores CSV output path (overrides config)")
	flag.Parse()

	// Validate inputs
	if *batchPath == "" || *plates == "" {
		flag.Usage()
		os.Exit(1)
	}

	// Load configuration and apply flag overrides
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *sphere != "" {
		cfg.Analysis.Sphere = *sphere
	}
	if *suffix != "" {
		cfg.Analysis.Suffix = *suffix
	}
	if *how != "" {
		cfg.Analysis.How = *how
	}
	if *nSamples > 0 {
		cfg.Analysis.NSamples = *nSamples
	}
	if *seed >= 0 {
		cfg.Analysis.Seed = *seed
	}
	if *output != "" {
		cfg.Output.ScoresFile = *output
	}

	analyzer := analysis.NewAnalyzer(analysis.Params{
		Suffix:   cfg.Analysis.Suffix,
		Sphere:   analysis.SphereMode(cfg.Analysis.Sphere),
		NSamples: cfg.Analysis.NSamples,
		Seed:     cfg.Analysis.Seed,
		How:      scoring.Mode(cfg.Analysis.How),
		Verbose:  cfg.Output.Verbose,
	})

	plateList := splitPlates(*plates)

	fmt.Println("================================")
	fmt.Println("PROFILESCORE: PERCENT REPLICATING / PERCENT MATCHING")
	fmt.Printf("Metric: %s | Sphere: %s | Null samples: %d\n",
		*metric, cfg.Analysis.Sphere, cfg.Analysis.NSamples)
	fmt.Println("================================")

	startTime := time.Now()
	var rows []models.ScoreRow

	switch *metric {
	case "replicating-moa":
		// MOA plates are scored one at a time.
		for _, plate := range plateList {
			score, err := analyzer.PercentReplicatingMOA(*batchPath, plate)
			if err != nil {
				log.Fatalf("Percent replicating failed for plate %s: %v", plate, err)
			}
			fmt.Printf("Plate %s: percent replicating = %.3f (threshold %.3f)\n",
				plate, score.Value, score.RightThreshold)
			rows = append(rows, models.ScoreRow{
				Metric:         "percent_replicating",
				BatchPath:      *batchPath,
				Plates:         plate,
				Value:          score.Value,
				RightThreshold: score.RightThreshold,
				LeftThreshold:  score.LeftThreshold,
			})
		}

	case "replicating-target":
		score, err := analyzer.PercentReplicatingTarget(*batchPath, plateList)
		if err != nil {
			log.Fatalf("Percent replicating failed: %v", err)
		}
		fmt.Printf("Batch: percent replicating = %.3f (threshold %.3f)\n",
			score.Value, score.RightThreshold)
		rows = append(rows, models.ScoreRow{
			Metric:         "percent_replicating",
			BatchPath:      *batchPath,
			Plates:         strings.Join(plateList, "|"),
			Value:          score.Value,
			RightThreshold: score.RightThreshold,
			LeftThreshold:  score.LeftThreshold,
		})

	case "matching-target":
		if *batchPath2 == "" || *plates2 == "" {
			log.Fatal("matching-target requires -batch2 and -plates2")
		}
		score, err := analyzer.PercentMatchingTarget(
			analysis.ModalityBatch{BatchPath: *batchPath, Plates: plateList, Modality: *modality1},
			analysis.ModalityBatch{BatchPath: *batchPath2, Plates: splitPlates(*plates2), Modality: *modality2},
		)
		if err != nil {
			log.Fatalf("Percent matching failed: %v", err)
		}
		fmt.Printf("%s vs %s: percent matching = %.3f (thresholds %.3f / %.3f)\n",
			*modality1, *modality2, score.Value, score.LeftThreshold, score.RightThreshold)
		rows = append(rows, models.ScoreRow{
			Metric:         "percent_matching",
			BatchPath:      *batchPath + ";" + *batchPath2,
			Plates:         strings.Join(plateList, "|") + ";" + strings.Join(splitPlates(*plates2), "|"),
			Value:          score.Value,
			RightThreshold: score.RightThreshold,
			LeftThreshold:  score.LeftThreshold,
		})

	default:
		log.Fatalf("Unknown metric %q", *metric)
	}

	if err := writeScores(cfg.Output.ScoresFile, rows); err != nil {
		log.Fatalf("Failed to write scores: %v", err)
	}

	fmt.Printf("\nComputed %d score(s) in %.2f seconds\n", len(rows), time.Since(startTime).Seconds())
	fmt.Printf("Score table saved to: %s\n", cfg.Output.ScoresFile)
}

// splitPlates parses a comma-separated plate list, ignoring empty
// entries and surrounding whitespace.
func splitPlates(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// writeScores writes the score table consumed by the plotting layer.
func writeScores(path string, rows []models.ScoreRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(models.Header()); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row.Record()); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
