package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/opentn3270/tn3270/ps"
	"github.com/opentn3270/tn3270/transport"
)

// envSpec documents one environment variable this package understands,
// adapted from the teacher pack's s3270-style EnvVar/Flag/Description
// table (other_examples' s3270_env.go) -- same idea, this domain's
// variable names.
type envSpec struct {
	EnvVar      string
	Description string
}

var envSpecs = []envSpec{
	{"SESSION_HOST", "Host to connect to"},
	{"SESSION_PORT", "TCP port to connect to"},
	{"SESSION_TERM_TYPE", "Terminal type string sent during negotiation"},
	{"SESSION_SSL", "Enable TLS (true/false)"},
	{"SESSION_SSL_VERIFY", "TLS verification mode: none, cert, hostname"},
	{"SESSION_SSL_SERVER_NAME", "Expected server name for hostname verification"},
	{"ZTI_SECLEVEL", "Minimum TLS protocol floor: 0, 1, or 2"},
	{"SESSION_PS_SIZE", "Presentation space size: 24x80, 32x80, 43x80, 27x132, or MAX"},
	{"SESSION_CODEPAGE", "EBCDIC codepage id: 037, 1047, or 310"},
	{"TNZ_COLORS", "Number of colors to advertise in Query Reply"},
	{"SESSION_IND_FILE", "Advertise IND$FILE capability (true/false)"},
	{"SESSION_LOG_LEVEL", "logrus level: trace, debug, info, warn, error"},
}

// Describe returns the documented environment variables, for a CLI's
// --help output.
func Describe() []string {
	out := make([]string, len(envSpecs))
	for i, s := range envSpecs {
		out[i] = fmt.Sprintf("%s: %s", s.EnvVar, s.Description)
	}
	return out
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("SESSION_HOST")); v != "" {
		cfg.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_PORT")); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SESSION_PORT: %w", err)
		}
		cfg.Port = p
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_TERM_TYPE")); v != "" {
		cfg.TermType = v
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_SSL")); v != "" {
		cfg.UseTLS = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_SSL_VERIFY")); v != "" {
		mode, err := parseVerifyMode(v)
		if err != nil {
			return err
		}
		cfg.TLSVerify = mode
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_SSL_SERVER_NAME")); v != "" {
		cfg.ServerName = v
	}
	if v := strings.TrimSpace(os.Getenv("ZTI_SECLEVEL")); v != "" {
		lvl, err := strconv.Atoi(v)
		if err != nil || lvl < 0 || lvl > 2 {
			return fmt.Errorf("ZTI_SECLEVEL: invalid value %q", v)
		}
		cfg.SecLevel = transport.SecLevel(lvl)
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_PS_SIZE")); v != "" {
		size, alt, err := parsePSSize(v)
		if err != nil {
			return err
		}
		cfg.Size = size
		if alt.Rows != 0 {
			cfg.Alt = alt
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_CODEPAGE")); v != "" {
		cfg.Codepage = v
	}
	if v := strings.TrimSpace(os.Getenv("TNZ_COLORS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TNZ_COLORS: %w", err)
		}
		cfg.Colors = n
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_IND_FILE")); v != "" {
		cfg.FileTransferCapable = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseVerifyMode(v string) (transport.VerifyMode, error) {
	switch strings.ToLower(v) {
	case "none":
		return transport.VerifyNone, nil
	case "cert":
		return transport.VerifyCert, nil
	case "hostname":
		return transport.VerifyHostname, nil
	default:
		return 0, fmt.Errorf("SESSION_SSL_VERIFY: unrecognized mode %q", v)
	}
}

// parsePSSize resolves a size string. "MAX" is left for the UI layer to
// resolve against the negotiated device type (spec.md §9 Open Question);
// here it's treated as the largest standard size, 27x132, with no
// further negotiation-aware logic.
func parsePSSize(v string) (size, alt ps.Size, err error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "24X80":
		return ps.Size24x80, ps.Size43x80, nil
	case "32X80":
		return ps.Size32x80, ps.Size43x80, nil
	case "43X80":
		return ps.Size43x80, ps.Size43x80, nil
	case "27X132":
		return ps.Size27x132, ps.Size27x132, nil
	case "MAX":
		return ps.Size27x132, ps.Size27x132, nil
	default:
		return ps.Size{}, ps.Size{}, fmt.Errorf("SESSION_PS_SIZE: unrecognized size %q", v)
	}
}
