package typegraph

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nicia-ai/typegraph/storage"
)

// Config is the YAML-loadable deployment configuration for a TypeGraph
// backend: table-name overrides, dialect capability overrides, and the
// ambient tuning knobs spec §6.2/§4.8 leave to the operator.
type Config struct {
	Tables         TableConfig   `yaml:"tables"`
	StatementCache int           `yaml:"statementCache"`
	SlowQuery      time.Duration `yaml:"slowQuery"`
	SerializeQueue int           `yaml:"serializeQueue"`
}

// TableConfig mirrors storage.TableNames for YAML decoding; zero fields
// fall back to storage.DefaultTableNames() values.
type TableConfig struct {
	Nodes          string `yaml:"nodes"`
	Edges          string `yaml:"edges"`
	Uniques        string `yaml:"uniques"`
	SchemaVersions string `yaml:"schemaVersions"`
	Embeddings     string `yaml:"embeddings"`
}

// Default returns the configuration a backend uses when no config file is
// supplied: default table names, a 256-entry statement cache, a 200ms
// slow-query threshold, and a serialization queue depth of 64.
func Default() *Config {
	return &Config{
		Tables:         tableConfigFrom(storage.DefaultTableNames()),
		StatementCache: 256,
		SlowQuery:      200 * time.Millisecond,
		SerializeQueue: 64,
	}
}

func tableConfigFrom(t storage.TableNames) TableConfig {
	return TableConfig{Nodes: t.Nodes, Edges: t.Edges, Uniques: t.Uniques, SchemaVersions: t.SchemaVersions, Embeddings: t.Embeddings}
}

// TableNames converts c's table configuration to storage.TableNames,
// filling any blank field from storage.DefaultTableNames().
func (c *Config) TableNames() storage.TableNames {
	d := storage.DefaultTableNames()
	t := storage.TableNames{
		Nodes:          orDefault(c.Tables.Nodes, d.Nodes),
		Edges:          orDefault(c.Tables.Edges, d.Edges),
		Uniques:        orDefault(c.Tables.Uniques, d.Uniques),
		SchemaVersions: orDefault(c.Tables.SchemaVersions, d.SchemaVersions),
		Embeddings:     orDefault(c.Tables.Embeddings, d.Embeddings),
	}
	return t
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// LoadConfig reads and validates the YAML configuration file at path.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()
	cfg, err := LoadConfigFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigFromReader decodes a YAML config from r, filling unset fields
// from Default and validating the result. Exposed separately from
// LoadConfig so tests can build a Config from a string literal.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg's table names satisfy the engine's identifier
// rule and that its numeric knobs are non-negative.
func (c *Config) Validate() error {
	if err := c.TableNames().Validate(); err != nil {
		return err
	}
	if c.StatementCache < 0 {
		return NewConfigurationError("statementCache must be >= 0", nil)
	}
	if c.SerializeQueue < 0 {
		return NewConfigurationError("serializeQueue must be >= 0", nil)
	}
	if c.SlowQuery < 0 {
		return NewConfigurationError("slowQuery must be >= 0", nil)
	}
	return nil
}
