package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/extcore/config"
	"github.com/grovetools/extcore/schema"
)

func main() {
	outputPath := flag.String("o", "schema/definitions/extcore.schema.json", "output file")
	flag.Parse()

	schemaBytes, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("Error generating schema: %v", err)
	}

	// Compile before writing so a broken schema never lands on disk.
	if _, err := schema.NewValidator(filepath.Base(*outputPath), schemaBytes); err != nil {
		log.Fatalf("Generated schema does not compile: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*outputPath), 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}
	if err := os.WriteFile(*outputPath, schemaBytes, 0644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}

	log.Printf("Successfully generated extcore schema at %s", *outputPath)
}
