package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opentn3270/tn3270/transport"
)

// yamlConfig mirrors Config's fields with yaml tags, decoupled so Config
// itself can carry types (ps.Size, transport.SecLevel) without tagging
// every field for a format most callers never touch.
type yamlConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TermType string `yaml:"term_type"`

	SSL        bool   `yaml:"ssl"`
	SSLVerify  string `yaml:"ssl_verify"`
	ServerName string `yaml:"server_name"`
	SecLevel   *int   `yaml:"sec_level"`

	PSSize   string `yaml:"ps_size"`
	Codepage string `yaml:"codepage"`
	Colors   int    `yaml:"colors"`

	IndFile  bool   `yaml:"ind_file"`
	LogLevel string `yaml:"log_level"`
}

func overlayYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if y.Host != "" {
		cfg.Host = y.Host
	}
	if y.Port != 0 {
		cfg.Port = y.Port
	}
	if y.TermType != "" {
		cfg.TermType = y.TermType
	}
	cfg.UseTLS = cfg.UseTLS || y.SSL
	if y.SSLVerify != "" {
		mode, err := parseVerifyMode(y.SSLVerify)
		if err != nil {
			return err
		}
		cfg.TLSVerify = mode
	}
	if y.ServerName != "" {
		cfg.ServerName = y.ServerName
	}
	if y.SecLevel != nil && *y.SecLevel >= 0 && *y.SecLevel <= 2 {
		cfg.SecLevel = transport.SecLevel(*y.SecLevel)
	}
	if y.PSSize != "" {
		size, alt, err := parsePSSize(y.PSSize)
		if err != nil {
			return err
		}
		cfg.Size = size
		cfg.Alt = alt
	}
	if y.Codepage != "" {
		cfg.Codepage = y.Codepage
	}
	if y.Colors != 0 {
		cfg.Colors = y.Colors
	}
	cfg.FileTransferCapable = cfg.FileTransferCapable || y.IndFile
	if y.LogLevel != "" {
		cfg.LogLevel = y.LogLevel
	}

	return nil
}
