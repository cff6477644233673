package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestLoadFromReaderOverridesOnlyGivenKeys(t *testing.T) {
	doc := `
device:
  address: 192.168.1.40
  command_interval: 80ms
color:
  max_brightness: 25
pattern:
  mode_hold: 4s
`
	cfg, err := LoadFromReader(strings.NewReader(doc), Default())
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.40", cfg.Device.Address)
	assert.Equal(t, 80*time.Millisecond, cfg.Device.CommandInterval)
	assert.Equal(t, 25, cfg.Color.MaxBrightness)
	assert.Equal(t, 4*time.Second, cfg.Pattern.ModeHold)

	// untouched keys keep their defaults
	assert.Equal(t, DefaultControlPort, cfg.Device.ControlPort)
	assert.Equal(t, DefaultMusicPort, cfg.Device.MusicPort)
	assert.Equal(t, 2048, cfg.Audio.FrameSize)
	assert.Equal(t, 0.85, cfg.Spectrum.RolloffRatio)
}

func TestLoadFromReaderEmptyDocument(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""), Default())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromReaderRejectsUnknownKeys(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("device:\n  adress: 10.0.0.2\n"), Default())
	assert.Error(t, err)
}

func TestLoadFromReaderValidates(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("color:\n  min_brightness: 0\n"), Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brightness range")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device:\n  music_port: 55000\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 55000, cfg.Device.MusicPort)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateReportsEveryViolation(t *testing.T) {
	cfg := Default()
	cfg.Audio.FrameSize = 0
	cfg.Beat.NoiseAlpha = 2
	cfg.Device.MusicPort = 70000
	cfg.Log.Level = "verbose"

	err := Validate(cfg)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "audio.frame_size")
	assert.Contains(t, msg, "beat.noise_alpha")
	assert.Contains(t, msg, "device.music_port")
	assert.Contains(t, msg, "log.level")
}

func TestValidateRejectsOverlappingBands(t *testing.T) {
	cfg := Default()
	cfg.Spectrum.Mid = Band{Low: 200, High: 2000}
	assert.Error(t, Validate(cfg))
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvAddress:   "10.0.0.7:55443",
		EnvMusicPort: "54400",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	base := Default()
	cfg, err := ApplyEnv(base, lookup)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7:55443", cfg.Device.Address)
	assert.Equal(t, 54400, cfg.Device.MusicPort)
	assert.Empty(t, base.Device.Address, "base config must not be mutated")

	env[EnvMusicPort] = "not-a-port"
	_, err = ApplyEnv(base, lookup)
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(EnvAddress+"=10.1.2.3\n"), 0o600))
	t.Setenv(EnvAddress, "")
	require.NoError(t, os.Unsetenv(EnvAddress))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"), path))
	assert.Equal(t, "10.1.2.3", os.Getenv(EnvAddress))
}
