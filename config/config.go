// Package config assembles a Session's settings from environment
// variables and an optional YAML overlay, in that precedence order
// (spec.md §3 ambient stack), grounded on the s3270-style
// environment-variable convention.
package config

import (
	"github.com/opentn3270/tn3270/ps"
	"github.com/opentn3270/tn3270/transport"
)

// Config is the fully-resolved set of knobs a Session needs to connect.
type Config struct {
	Host     string
	Port     int
	TermType string

	UseTLS    bool
	TLSVerify transport.VerifyMode
	SecLevel  transport.SecLevel
	ServerName string

	Size ps.Size
	Alt  ps.Size

	Codepage string
	Colors   int

	FileTransferCapable bool

	LogLevel string
}

// Default returns a Config with the defaults this package's env/YAML
// loaders build on top of.
func Default() Config {
	return Config{
		Port:      23,
		TermType:  "IBM-3279-4-E",
		TLSVerify: transport.VerifyHostname,
		SecLevel:  transport.SecLevel2,
		Size:      ps.Size24x80,
		Alt:       ps.Size43x80,
		Codepage:  "037",
		Colors:    8,
		LogLevel:  "info",
	}
}

// Load resolves a Config starting from Default(), overlaying a YAML file
// at yamlPath if it's non-empty and exists (see yaml.go), then applying
// environment variables (see env.go). Environment variables take precedence over
// the YAML file's values that they overlap with, matching s3270's
// "environment wins" convention in the teacher pack's reference.
func Load(yamlPath string) (Config, error) {
	cfg := Default()
	if yamlPath != "" {
		if err := overlayYAML(&cfg, yamlPath); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
