// Package config loads treeforge settings from an HCL file.
//
// Example:
//
//	history_limit = 100
//	log_level     = "debug"
//
//	archive {
//	  output_dir = "dist"
//	  bucket {
//	    endpoint   = "play.min.io:9000"
//	    bucket     = "layouts"
//	    access_key = env.TREEFORGE_ACCESS_KEY
//	    secret_key = env.TREEFORGE_SECRET_KEY
//	    use_ssl    = true
//	  }
//	}
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"

	"github.com/agentic-research/treeforge/internal/history"
)

// EnvVar overrides the default config location.
const EnvVar = "TREEFORGE_CONFIG"

// Config is the decoded configuration file.
type Config struct {
	HistoryLimit int      `hcl:"history_limit,optional" validate:"gte=1,lte=1000"`
	DefaultText  string   `hcl:"default_text,optional"`
	LogLevel     string   `hcl:"log_level,optional" validate:"oneof=debug info warn error"`
	LogFormat    string   `hcl:"log_format,optional" validate:"oneof=text json"`
	SessionDB    string   `hcl:"session_db,optional"`
	Archive      *Archive `hcl:"archive,block"`
	NFS          *NFS     `hcl:"nfs,block"`
}

// Archive controls where packaged trees go.
type Archive struct {
	OutputDir string  `hcl:"output_dir,optional"`
	Bucket    *Bucket `hcl:"bucket,block"`
}

// Bucket is an S3-compatible upload target.
type Bucket struct {
	Endpoint  string `hcl:"endpoint" validate:"required,hostname_port"`
	Bucket    string `hcl:"bucket" validate:"required"`
	AccessKey string `hcl:"access_key,optional"`
	SecretKey string `hcl:"secret_key,optional" validate:"required_with=AccessKey"`
	UseSSL    bool   `hcl:"use_ssl,optional"`
	Prefix    string `hcl:"prefix,optional"`
}

// NFS configures the preview server.
type NFS struct {
	Port int `hcl:"port,optional" validate:"gte=0,lte=65535"`
}

// Dir is the per-user directory holding the default config and session.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "treeforge")
	}
	return filepath.Join(home, ".agentic-research", "treeforge")
}

// DefaultPath is where Load looks when neither a path nor EnvVar is set.
func DefaultPath() string {
	return filepath.Join(Dir(), "treeforge.hcl")
}

// Default is the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads the config at path, falling back to $TREEFORGE_CONFIG and then
// DefaultPath. Only a missing default file is tolerated; an explicitly named
// file must exist.
func Load(path string) (*Config, error) {
	explicit := true
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		path = DefaultPath()
		explicit = false
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	var c Config
	if err := hclsimple.DecodeFile(path, evalContext(), &c); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &c, nil
}

// Parse decodes config source held in memory. filename only picks the
// syntax (.hcl or .json) and labels diagnostics.
func Parse(filename string, src []byte) (*Config, error) {
	var c Config
	if err := hclsimple.Decode(filename, src, evalContext(), &c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.HistoryLimit == 0 {
		c.HistoryLimit = history.DefaultLimit
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.SessionDB == "" {
		c.SessionDB = filepath.Join(Dir(), "session.db")
	}
	if c.Archive == nil {
		c.Archive = &Archive{}
	}
	if c.Archive.OutputDir == "" {
		c.Archive.OutputDir = "."
	}
	if c.NFS == nil {
		c.NFS = &NFS{}
	}
}

// evalContext exposes the process environment as env.NAME.
func evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(vars)},
	}
}
