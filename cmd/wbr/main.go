// Command wbr computes the weekly open-rate review from a CSV file (or the
// built-in sample) and writes the report export, and optionally the Markdown
// digest and trend chart, to a directory.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ignite/wbr-monitor/internal/chart"
	"github.com/ignite/wbr-monitor/internal/config"
	"github.com/ignite/wbr-monitor/internal/digest"
	"github.com/ignite/wbr-monitor/internal/export"
	"github.com/ignite/wbr-monitor/internal/ingest"
	"github.com/ignite/wbr-monitor/internal/repository/memory"
	"github.com/ignite/wbr-monitor/internal/service/narrative"
	"github.com/ignite/wbr-monitor/internal/session"
	"github.com/ignite/wbr-monitor/internal/storage"
	"github.com/ignite/wbr-monitor/internal/wbr"
)

// reportFlags are the flags of the report command.
type reportFlags struct {
	Input       string
	Annotations string
	OutDir      string
	Threshold   float64
	Goal        float64
	Digest      bool
	Chart       bool
	AWSRegion   string
}

func (f *reportFlags) AsCliFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "CSV of campaign periods: local path or s3://bucket/key. Empty uses the sample dataset.",
			Destination: &f.Input,
		},
		&cli.StringFlag{
			Name:        "annotations",
			Usage:       "A previously exported report whose narrative columns are applied to matching rows.",
			Destination: &f.Annotations,
		},
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Value:       cfg.Report.ExportDir,
			Usage:       "Directory the report files are written to.",
			Destination: &f.OutDir,
		},
		&cli.Float64Flag{
			Name:        "threshold",
			Value:       cfg.Report.Threshold(),
			Usage:       "Goal variance in percentage points below which a period is Off Track.",
			Destination: &f.Threshold,
		},
		&cli.Float64Flag{
			Name:        "default-goal",
			Value:       cfg.Report.GoalOpenRate(),
			Usage:       "Goal open rate used when the input has no Goal_Open_Rate column.",
			Destination: &f.Goal,
		},
		&cli.BoolFlag{
			Name:        "digest",
			Usage:       "Also write the Markdown digest.",
			Destination: &f.Digest,
		},
		&cli.BoolFlag{
			Name:        "chart",
			Usage:       "Also write the open rate vs goal chart as PNG.",
			Destination: &f.Chart,
		},
		&cli.StringFlag{
			Name:        "aws-region",
			Value:       cfg.Storage.AWSRegion,
			Usage:       "Region used for s3:// inputs.",
			Destination: &f.AWSRegion,
		},
	}
}

func main() {
	cfg, err := config.LoadFromEnv(os.Getenv("WBR_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var flags reportFlags
	app := &cli.App{
		Name:  "wbr",
		Usage: "Weekly business review for email open rates.",
		Commands: []*cli.Command{
			{
				Name:        "report",
				Usage:       "Compute the review and write report files",
				Description: "Reads campaign periods, computes open rate, variances and status, and writes WBR_Report_YYYYMMDD.csv.",
				Flags:       flags.AsCliFlags(cfg),
				Action: func(c *cli.Context) error {
					written, err := runReport(c.Context, flags, time.Now())
					if err != nil {
						return err
					}
					for _, p := range written {
						fmt.Fprintln(c.App.Writer, p)
					}
					return nil
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runReport executes the report command and returns the paths it wrote.
func runReport(ctx context.Context, f reportFlags, now time.Time) ([]string, error) {
	opts := ingest.Options{DefaultGoalOpenRate: &f.Goal}

	ds, source, err := readInput(ctx, f, opts)
	if err != nil {
		return nil, err
	}

	sess := session.New(wbr.NewPipeline(f.Threshold), narrative.NewStore(memory.NewAnnotationRepo()))
	if err := sess.Load(ctx, ds, source); err != nil {
		return nil, err
	}

	if f.Annotations != "" {
		file, err := os.Open(f.Annotations)
		if err != nil {
			return nil, fmt.Errorf("open annotations: %w", err)
		}
		in, err := ingest.ReadReport(file)
		file.Close()
		if err != nil {
			return nil, err
		}
		applied, skipped, err := sess.ImportAnnotations(ctx, in)
		if err != nil {
			return nil, err
		}
		log.Printf("[wbr] applied %d annotations, skipped %d unknown rows", applied, skipped)
	}

	rows, err := sess.Rows(ctx)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(f.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var written []string
	exportPath := filepath.Join(f.OutDir, export.Filename(now))
	if err := writeFile(exportPath, func(w io.Writer) error { return export.WriteCSV(w, rows) }); err != nil {
		return nil, err
	}
	written = append(written, exportPath)

	if f.Digest {
		renderer, err := digest.NewRenderer(digest.DefaultTemplate)
		if err != nil {
			return nil, err
		}
		computed, err := sess.Computed()
		if err != nil {
			return nil, err
		}
		md, err := renderer.Render(digest.NewReport(rows, computed, f.Threshold, now))
		if err != nil {
			return nil, err
		}
		p := filepath.Join(f.OutDir, strings.TrimSuffix(export.Filename(now), ".csv")+".md")
		if err := os.WriteFile(p, []byte(md), 0644); err != nil {
			return nil, fmt.Errorf("write digest: %w", err)
		}
		written = append(written, p)
	}

	if f.Chart {
		series, err := sess.Chart()
		if err != nil {
			return nil, err
		}
		p := filepath.Join(f.OutDir, strings.TrimSuffix(export.Filename(now), ".csv")+".png")
		if err := writeFile(p, func(w io.Writer) error { return chart.RenderPNG(w, series, chart.DefaultOptions) }); err != nil {
			return nil, err
		}
		written = append(written, p)
	}
	return written, nil
}

func readInput(ctx context.Context, f reportFlags, opts ingest.Options) (*ingest.Dataset, string, error) {
	switch {
	case f.Input == "":
		return ingest.SampleDataset(), session.SourceSample, nil
	case strings.HasPrefix(f.Input, "s3://"):
		bucket, _, err := storage.ParseS3URI(f.Input)
		if err != nil {
			return nil, "", err
		}
		store, err := storage.New(ctx, config.StorageConfig{Type: "aws", S3Bucket: bucket, AWSRegion: f.AWSRegion})
		if err != nil {
			return nil, "", err
		}
		rc, err := store.Open(ctx, f.Input)
		if err != nil {
			return nil, "", err
		}
		defer rc.Close()
		ds, err := ingest.ReadCSV(rc, opts)
		return ds, session.SourceS3, err
	default:
		ds, err := ingest.ReadFile(f.Input, opts)
		return ds, session.SourceFile, err
	}
}

func writeFile(path string, fn func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}
