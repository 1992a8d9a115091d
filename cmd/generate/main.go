package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-dataprep/internal/pipeline"
)

const (
	schemaName       = "dataprep-config.json"
	sampleConfigName = "dataprep.yaml"
)

func main() {
	schemaPath := filepath.Join("./config", schemaName)
	sampleConfigPath := filepath.Join("./config", sampleConfigName)

	if err := generateSchemaFile(schemaPath); err != nil {
		log.Fatal(err)
	}

	log.Printf("Schema successfully generated at %s", schemaPath)

	// an existing sample config may carry local edits
	if _, err := os.Stat(sampleConfigPath); os.IsNotExist(err) {
		if err := generateSampleConfig(pipeline.DefaultConfig(), sampleConfigPath, schemaName); err != nil {
			log.Fatal(err)
		}

		log.Printf("Sample config successfully generated at %s", sampleConfigPath)
	}
}

// generateSchemaFile writes the JSON schema of the dataprep config to path.
func generateSchemaFile(path string) error {
	schemaJSON, err := pipeline.GetConfigSchema()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(schemaJSON), 0o644); err != nil {
		return fmt.Errorf("failed to write schema to file: %w", err)
	}

	return nil
}

// generateSampleConfig writes config as YAML to path, pointing editors at schemaName.
func generateSampleConfig(config pipeline.Config, path string, schemaName string) error {
	yamlBytes, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal sample config to yaml: %w", err)
	}

	yamlBytes = append([]byte("# yaml-language-server: $schema="+schemaName+"\n"), yamlBytes...)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, yamlBytes, 0o644); err != nil {
		return fmt.Errorf("failed to write sample config to file: %w", err)
	}

	return nil
}
