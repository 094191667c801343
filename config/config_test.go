package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentn3270/tn3270/ps"
	"github.com/opentn3270/tn3270/transport"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range envSpecs {
		old, had := os.LookupEnv(s.EnvVar)
		os.Unsetenv(s.EnvVar)
		if had {
			t.Cleanup(func() { os.Setenv(s.EnvVar, old) })
		}
	}
}

func TestDefaultValues(t *testing.T) {
	d := Default()
	assert.Equal(t, 23, d.Port)
	assert.Equal(t, "IBM-3279-4-E", d.TermType)
	assert.Equal(t, transport.VerifyHostname, d.TLSVerify)
	assert.Equal(t, transport.SecLevel2, d.SecLevel)
	assert.Equal(t, ps.Size24x80, d.Size)
}

func TestLoadNoOverridesReturnsDefault(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAMLOverlay(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host: mainframe.example.com
port: 992
ssl: true
ssl_verify: none
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mainframe.example.com", cfg.Host)
	assert.Equal(t, 992, cfg.Port)
	assert.True(t, cfg.UseTLS)
	assert.Equal(t, transport.VerifyNone, cfg.TLSVerify)
	// sec_level absent from YAML must not clobber the Default() value.
	assert.Equal(t, transport.SecLevel2, cfg.SecLevel)
}

func TestLoadYAMLExplicitSecLevelZeroIsHonored(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sec_level: 0\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, transport.SecLevel0, cfg.SecLevel)
}

func TestLoadYAMLMissingFileIsNotError(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestEnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: fromyaml.example.com\n"), 0o644))

	os.Setenv("SESSION_HOST", "fromenv.example.com")
	t.Cleanup(func() { os.Unsetenv("SESSION_HOST") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fromenv.example.com", cfg.Host)
}

func TestApplyEnvParsesEachVariable(t *testing.T) {
	clearEnv(t)
	os.Setenv("SESSION_HOST", "host1")
	os.Setenv("SESSION_PORT", "2323")
	os.Setenv("SESSION_TERM_TYPE", "IBM-3278-2")
	os.Setenv("SESSION_SSL", "yes")
	os.Setenv("SESSION_SSL_VERIFY", "cert")
	os.Setenv("SESSION_SSL_SERVER_NAME", "host1.example.com")
	os.Setenv("ZTI_SECLEVEL", "1")
	os.Setenv("SESSION_PS_SIZE", "43X80")
	os.Setenv("SESSION_CODEPAGE", "1047")
	os.Setenv("TNZ_COLORS", "16")
	os.Setenv("SESSION_IND_FILE", "true")
	os.Setenv("SESSION_LOG_LEVEL", "debug")
	t.Cleanup(func() { clearEnv(t) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "host1", cfg.Host)
	assert.Equal(t, 2323, cfg.Port)
	assert.Equal(t, "IBM-3278-2", cfg.TermType)
	assert.True(t, cfg.UseTLS)
	assert.Equal(t, transport.VerifyCert, cfg.TLSVerify)
	assert.Equal(t, "host1.example.com", cfg.ServerName)
	assert.Equal(t, transport.SecLevel1, cfg.SecLevel)
	assert.Equal(t, ps.Size43x80, cfg.Size)
	assert.Equal(t, "1047", cfg.Codepage)
	assert.Equal(t, 16, cfg.Colors)
	assert.True(t, cfg.FileTransferCapable)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestApplyEnvInvalidPortErrors(t *testing.T) {
	clearEnv(t)
	os.Setenv("SESSION_PORT", "not-a-number")
	t.Cleanup(func() { clearEnv(t) })
	_, err := Load("")
	assert.Error(t, err)
}

func TestApplyEnvInvalidSecLevelErrors(t *testing.T) {
	clearEnv(t)
	os.Setenv("ZTI_SECLEVEL", "9")
	t.Cleanup(func() { clearEnv(t) })
	_, err := Load("")
	assert.Error(t, err)
}

func TestApplyEnvInvalidVerifyModeErrors(t *testing.T) {
	clearEnv(t)
	os.Setenv("SESSION_SSL_VERIFY", "bogus")
	t.Cleanup(func() { clearEnv(t) })
	_, err := Load("")
	assert.Error(t, err)
}

func TestParsePSSizeKnownValues(t *testing.T) {
	cases := map[string]ps.Size{
		"24x80":  ps.Size24x80,
		"32X80":  ps.Size32x80,
		"43x80":  ps.Size43x80,
		"27X132": ps.Size27x132,
		"max":    ps.Size27x132,
	}
	for in, want := range cases {
		size, _, err := parsePSSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, size, in)
	}
}

func TestParsePSSizeUnknownErrors(t *testing.T) {
	_, _, err := parsePSSize("80x24")
	assert.Error(t, err)
}

func TestDescribeListsAllVars(t *testing.T) {
	desc := Describe()
	assert.Len(t, desc, len(envSpecs))
	assert.Contains(t, desc[0], "SESSION_HOST")
}
