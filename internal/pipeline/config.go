package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-dataprep/internal/cache"
	"github.com/rxtech-lab/argo-dataprep/internal/calendar"
	"github.com/rxtech-lab/argo-dataprep/internal/graph"
	"github.com/rxtech-lab/argo-dataprep/internal/output"
	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
	"github.com/rxtech-lab/argo-dataprep/pkg/marketdata"
	"github.com/rxtech-lab/argo-dataprep/pkg/utils"
)

// Config is the configuration of a preparation run.
type Config struct {
	CachePath       string         `yaml:"cache_path" json:"cache_path" jsonschema:"title=Cache Path,description=DuckDB file holding the market data cache" validate:"required"`
	OutputDir       string         `yaml:"output_dir" json:"output_dir" jsonschema:"title=Output Directory,description=Directory the feature table and manifest are written to" validate:"required"`
	OutputFormat    string         `yaml:"output_format" json:"output_format" jsonschema:"title=Output Format,enum=csv,enum=parquet,default=csv" validate:"omitempty,oneof=csv parquet"`
	LogLevel        string         `yaml:"log_level" json:"log_level" jsonschema:"title=Log Level,enum=debug,enum=info,enum=warn,enum=error,default=info" validate:"omitempty,oneof=debug info warn error"`
	MaxPredictChain int            `yaml:"max_predict_chain" json:"max_predict_chain" jsonschema:"title=Max Predict Chain,description=Longest chain of chained forecasts a strategy may declare,default=5" validate:"gte=1"`
	Provider        ProviderConfig `yaml:"provider" json:"provider" jsonschema:"title=Provider"`
	Calendar        CalendarConfig `yaml:"calendar" json:"calendar" jsonschema:"title=Calendar"`
	Metadata        MetadataConfig `yaml:"metadata" json:"metadata" jsonschema:"title=Metadata"`
}

// ProviderConfig selects and throttles the remote market data provider.
type ProviderConfig struct {
	Type              string        `yaml:"type" json:"type" jsonschema:"title=Provider,enum=polygon,enum=binance" validate:"required,oneof=polygon binance"`
	APIKey            string        `yaml:"api_key" json:"api_key" jsonschema:"title=API Key,description=Required for polygon" validate:"required_if=Type polygon"`
	RowLimit          int           `yaml:"row_limit" json:"row_limit" jsonschema:"title=Row Limit,description=Rows a single provider call may return,default=5000" validate:"gte=1"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second" jsonschema:"title=Requests Per Second,description=Zero disables the limit,default=5" validate:"gte=0"`
	BatchDelay        time.Duration `yaml:"batch_delay" json:"batch_delay" jsonschema:"title=Batch Delay,description=Minimum pause between provider calls" validate:"gte=0"`
}

// CalendarConfig describes the generated trading calendar.
type CalendarConfig struct {
	// Mode defaults to the calendar the provider trades on.
	Mode     string   `yaml:"mode" json:"mode" jsonschema:"title=Mode,enum=weekdays,enum=continuous" validate:"omitempty,oneof=weekdays continuous"`
	Start    string   `yaml:"start" json:"start" jsonschema:"title=Start,format=date" validate:"required"`
	End      string   `yaml:"end" json:"end" jsonschema:"title=End,format=date" validate:"required"`
	Holidays []string `yaml:"holidays,omitempty" json:"holidays,omitempty" jsonschema:"title=Holidays,description=Closed weekdays as YYYY-MM-DD"`
}

// MetadataConfig locates the strategy, param and indicator definitions.
type MetadataConfig struct {
	Type string `yaml:"type" json:"type" jsonschema:"title=Type,enum=duckdb,enum=yaml" validate:"required,oneof=duckdb yaml"`
	Path string `yaml:"path" json:"path" jsonschema:"title=Path" validate:"required"`
}

// DefaultConfig returns a configuration with every optional field set.
func DefaultConfig() Config {
	return Config{
		CachePath:       "data/cache.duckdb",
		OutputDir:       "data/output",
		OutputFormat:    string(output.FormatCSV),
		LogLevel:        "info",
		MaxPredictChain: graph.DefaultMaxPredictChain,
		Provider: ProviderConfig{
			Type:              "polygon",
			APIKey:            "",
			RowLimit:          cache.DefaultRowLimit,
			RequestsPerSecond: 5,
			BatchDelay:        0,
		},
		Calendar: CalendarConfig{
			Mode:     "",
			Start:    "2015-01-01",
			End:      "2030-12-31",
			Holidays: nil,
		},
		Metadata: MetadataConfig{
			Type: "yaml",
			Path: "definitions.yaml",
		},
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig and validates it.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
	}

	return ParseConfig(data)
}

// ParseConfig decodes YAML config data on top of DefaultConfig and validates it.
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks the field constraints and the calendar dates.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	if _, err := c.Calendar.days(); err != nil {
		return err
	}

	return nil
}

// TradingDays generates the configured calendar, on the provider's calendar mode unless
// the config names one.
func (c Config) TradingDays() ([]types.TradingDay, error) {
	cal := c.Calendar
	if cal.Mode == "" {
		cal.Mode = string(marketdata.DefaultCalendarMode(c.Provider.Type))
	}

	return cal.TradingDays()
}

// TradingDays generates the configured calendar.
func (c CalendarConfig) TradingDays() ([]types.TradingDay, error) {
	bounds, err := c.days()
	if err != nil {
		return nil, err
	}

	holidays := make([]time.Time, 0, len(c.Holidays))
	for _, h := range c.Holidays {
		d, err := types.ParseDay(h)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid holiday", err)
		}

		holidays = append(holidays, d)
	}

	mode := calendar.Mode(c.Mode)
	if mode == "" {
		mode = calendar.ModeWeekdays
	}

	days, err := calendar.Generate(mode, bounds.Min, bounds.Max, holidays)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to generate calendar", err)
	}

	return days, nil
}

func (c CalendarConfig) days() (types.DateRange, error) {
	start, err := types.ParseDay(c.Start)
	if err != nil {
		return types.DateRange{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid calendar start", err)
	}

	end, err := types.ParseDay(c.End)
	if err != nil {
		return types.DateRange{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid calendar end", err)
	}

	if end.Before(start) {
		return types.DateRange{}, errors.Newf(errors.ErrCodeInvalidConfiguration, "calendar end %s is before start %s", c.End, c.Start)
	}

	return types.NewDateRange(start, end), nil
}

// GetConfigSchema returns the JSON schema of Config.
func GetConfigSchema() (string, error) {
	//nolint:exhaustruct // Empty struct is intentional for schema generation
	schema, err := utils.GetSchemaFromConfig(Config{})
	if err != nil {
		return "", fmt.Errorf("failed to encode config schema: %w", err)
	}

	return schema, nil
}
