package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-dataprep/internal/pipeline"
)

type GenerateCmdTestSuite struct {
	suite.Suite
	tempDir string
}

func TestGenerateCmdTestSuite(t *testing.T) {
	suite.Run(t, new(GenerateCmdTestSuite))
}

func (suite *GenerateCmdTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
	suite.T().Chdir(suite.tempDir)
}

func (suite *GenerateCmdTestSuite) TestSchemaGeneration() {
	main()

	content, err := os.ReadFile(filepath.Join(suite.tempDir, "config", schemaName))
	suite.Require().NoError(err)

	var schema map[string]any
	suite.Require().NoError(json.Unmarshal(content, &schema))
	suite.Contains(schema, "properties")
}

func (suite *GenerateCmdTestSuite) TestSampleConfigRoundTrips() {
	main()

	content, err := os.ReadFile(filepath.Join(suite.tempDir, "config", sampleConfigName))
	suite.Require().NoError(err)
	suite.Contains(string(content), "# yaml-language-server: $schema="+schemaName)

	var config pipeline.Config
	suite.Require().NoError(yaml.Unmarshal(content, &config))
	suite.Equal(pipeline.DefaultConfig(), config)
}

func (suite *GenerateCmdTestSuite) TestSampleConfigNotOverwritten() {
	path := filepath.Join(suite.tempDir, "config", sampleConfigName)
	suite.Require().NoError(os.MkdirAll(filepath.Dir(path), 0o755))
	suite.Require().NoError(os.WriteFile(path, []byte("cache_path: mine.duckdb\n"), 0o644))

	main()

	content, err := os.ReadFile(path)
	suite.Require().NoError(err)
	suite.Equal("cache_path: mine.duckdb\n", string(content))
}

func (suite *GenerateCmdTestSuite) TestGenerateSchemaFileInvalidPath() {
	blocker := filepath.Join(suite.tempDir, "file")
	suite.Require().NoError(os.WriteFile(blocker, nil, 0o644))

	err := generateSchemaFile(filepath.Join(blocker, "schema.json"))
	suite.Error(err)
	suite.Contains(err.Error(), "failed to")
}
