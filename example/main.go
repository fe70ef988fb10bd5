package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klippa-app/go-pdfium/webassembly"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/ivanvanderbyl/pdftables"
)

func main() {
	cmd := &cli.Command{
		Name:  "pdftables",
		Usage: "Extract ruled tables from PDF files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Input PDF file path",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (default: stdout)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: json, markdown or text",
				Value:   "json",
			},
			&cli.IntFlag{
				Name:  "start-page",
				Usage: "Start page number (1-indexed)",
			},
			&cli.IntFlag{
				Name:  "end-page",
				Usage: "End page number (1-indexed, default: last page)",
			},
			&cli.FloatFlag{
				Name:  "tolerance",
				Usage: "Distance under which coordinates are treated as equal",
				Value: pdftables.DefaultTolerance,
			},
			&cli.FloatFlag{
				Name:  "min-size",
				Usage: "Minimum extent of a stroked path to count as a ruling",
				Value: pdftables.DefaultMinRulingSize,
			},
			&cli.FloatFlag{
				Name:  "scale",
				Usage: "Viewport scale",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Pages computed in parallel (default: number of CPUs)",
			},
			&cli.StringFlag{
				Name:  "password",
				Usage: "Password for encrypted documents",
			},
			&cli.BoolFlag{
				Name:  "verify",
				Usage: "Warn about tables whose cells do not cover their grid",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log pipeline details and processing metrics",
			},
		},
		Action: extractTables,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func extractTables(ctx context.Context, cmd *cli.Command) error {
	inputPath := cmd.String("input")
	outputPath := cmd.String("output")
	format := cmd.String("format")

	switch format {
	case "json", "markdown", "text":
	default:
		return fmt.Errorf("unknown format %q: want json, markdown or text", format)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if cmd.Bool("verbose") {
		logger.SetLevel(logrus.DebugLevel)
	}

	config := pdftables.DefaultConfig()
	config.Tolerance = cmd.Float("tolerance")
	config.MinRulingSize = cmd.Float("min-size")
	config.Scale = cmd.Float("scale")
	if n := cmd.Int("concurrency"); n > 0 {
		config.Concurrency = n
	}
	config.Password = cmd.String("password")
	config.VerifyGrids = cmd.Bool("verify")
	config.EnableMetricsLogging = cmd.Bool("verbose")
	config.Logger = logger

	// Initialise pdfium
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to initialise pdfium: %w", err)
	}
	defer pool.Close()

	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		return fmt.Errorf("failed to get pdfium instance: %w", err)
	}

	doc, err := pdftables.OpenFile(instance, inputPath, config)
	if err != nil {
		return err
	}
	defer doc.Close()

	extractor := pdftables.NewExtractorWithConfig(instance, config)

	info, err := extractor.Info(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to get document info: %w", err)
	}
	logger.WithField("pages", info.PageCount).Info("processing PDF")

	var out io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if format == "text" {
		text, err := extractor.Text(ctx, doc)
		if err != nil {
			return fmt.Errorf("failed to extract text: %w", err)
		}
		_, err = fmt.Fprintln(out, text.ToText())
		return err
	}

	result, err := extractor.TablesInRange(ctx, doc, cmd.Int("start-page"), cmd.Int("end-page"))
	if err != nil {
		return fmt.Errorf("failed to extract tables: %w", err)
	}
	logger.WithField("tables", result.TableCount()).Info("extraction finished")

	if format == "markdown" {
		_, err = fmt.Fprint(out, result.ToMarkdown())
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
