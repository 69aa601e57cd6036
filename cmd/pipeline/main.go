package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"fiscal_blueprint/pkg/config"
	"fiscal_blueprint/pkg/core/llm"
	"fiscal_blueprint/pkg/core/pipeline"
	"fiscal_blueprint/pkg/core/policy"
	"fiscal_blueprint/pkg/core/prompt"
	"fiscal_blueprint/pkg/core/store"
	"fiscal_blueprint/pkg/models"
)

func mediaTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".html", ".htm":
		return "text/html"
	case ".txt":
		return "text/plain"
	case ".csv":
		return "text/csv"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

func loadDossier(dir string) ([]models.RawDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var docs []models.RawDocument
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			fmt.Printf("Warning: skipping %s: %v\n", e.Name(), err)
			continue
		}
		docs = append(docs, models.RawDocument{
			Filename:  e.Name(),
			MediaType: mediaTypeFor(e.Name()),
			Bytes:     data,
		})
	}
	return docs, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, assuming environment variables are set.")
	}

	if len(os.Args) < 2 {
		log.Fatal("Usage: pipeline <dossier-directory> [dossier-id]")
	}
	dossierDir := os.Args[1]
	dossierID := filepath.Base(dossierDir)
	if len(os.Args) > 2 {
		dossierID = os.Args[2]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if os.Getenv("GEMINI_API_KEY") == "" {
		log.Fatal("Error: GEMINI_API_KEY is not set.")
	}

	pol := policy.Default()
	if cfg.PolicyFile != "" {
		pol, err = policy.LoadFile(cfg.PolicyFile)
		if err != nil {
			log.Fatalf("Error: policy file: %v", err)
		}
	}
	if cfg.PromptDir != "" {
		if err := prompt.LoadFromDirectory(cfg.PromptDir); err != nil {
			log.Fatalf("Error: prompt overrides: %v", err)
		}
	}

	docs, err := loadDossier(dossierDir)
	if err != nil {
		log.Fatalf("Error: reading dossier directory: %v", err)
	}

	fmt.Printf("🚀 Fiscal Blueprint Pipeline Starting (%d documents)...\n", len(docs))

	oracle := &llm.GeminiOracle{FastModel: cfg.FastModel, DeepModel: cfg.DeepModel}
	orch := pipeline.NewOrchestrator(oracle, nil, pol, cfg.Sequential)
	orch.SetProgress(func(stage string, step, total int, message string, sub float64) {
		fmt.Printf("[%d/%d] %s: %s\n", step, total, stage, message)
	})

	ctx := context.Background()
	if cfg.Persist {
		if err := store.InitDB(ctx, cfg.DatabaseURL); err != nil {
			log.Fatalf("Error: database: %v", err)
		}
		defer store.Close()
		orch.SetRepository(store.NewBlueprintRepo())
	}

	result, err := orch.Run(ctx, dossierID, docs, cfg.ClientContext)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	outPath := filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_blueprint_v%d.json", dossierID, result.Blueprint.Version))
	data, err := json.MarshalIndent(result.Blueprint, "", "  ")
	if err != nil {
		log.Fatalf("Error: marshal blueprint: %v", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		log.Fatalf("Error: write blueprint: %v", err)
	}
	fmt.Printf("Blueprint written to %s\n", outPath)

	fmt.Println("\n=== VALIDATION ===")
	for _, c := range result.Checks {
		status := "PASS"
		if !c.Passed {
			status = "FAIL"
		}
		fmt.Printf("[%s] %-20s %-7s %s\n", status, c.Type, c.Severity, c.Message)
	}

	if len(result.Errors) > 0 {
		fmt.Println("\n=== DEGRADATIONS ===")
		for _, e := range result.Errors {
			fmt.Println("- " + e)
		}
	}

	fmt.Println("\n=== SUMMARY ===")
	for year, s := range result.Blueprint.Summaries {
		fmt.Printf("%d: actual return %.2f vs deemed %.2f -> indicative refund %.2f (complete: %v)\n",
			year, s.ActualReturn.Total, s.DeemedReturn, s.IndicativeRefund, s.Complete)
	}

	fmt.Println("\n[Done] Pipeline complete.")
}
