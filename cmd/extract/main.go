// Command extract pulls lab results or clinical sections out of a PDF and
// writes them as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/Skufu/medassist/internal/extract"
	"github.com/Skufu/medassist/internal/logging"
)

func main() {
	pdfPath := flag.String("pdf", "", "Path to PDF file (required)")
	outPath := flag.String("out", "extracted_data.json", "Where to write the extracted mapping")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logging.Init(logging.Config{Level: *logLevel, Format: "console"})

	if *pdfPath == "" {
		log.Fatal().Msg("PDF path is required")
	}
	if _, err := os.Stat(*pdfPath); os.IsNotExist(err) {
		log.Fatal().Str("pdf", *pdfPath).Msg("PDF file does not exist")
	}

	res, err := extract.NewExtractor().Extract(*pdfPath)
	if err != nil {
		log.Fatal().Err(err).Str("pdf", *pdfPath).Msg("extraction failed")
	}
	if err := writeMapping(*outPath, res.Data()); err != nil {
		log.Fatal().Err(err).Msg("write output")
	}

	log.Info().
		Str("strategy", string(res.Strategy)).
		Int("entries", len(res.Data())).
		Str("out", *outPath).
		Msg("extraction complete")
}

func writeMapping(path string, data map[string]string) error {
	if data == nil {
		data = map[string]string{}
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
