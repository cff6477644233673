package main

import (
	"io"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybre/yeelight-audio-sync/internal/audio"
	"github.com/cybre/yeelight-audio-sync/internal/config"
	"github.com/cybre/yeelight-audio-sync/internal/yeelight"
)

func TestApplyFlagsOnlyOverridesGivenFlags(t *testing.T) {
	opts, err := parseCLIFlags([]string{
		"-bulb", "192.168.1.20",
		"-max-brightness", "25",
		"-latency-ms", "40",
		"-debug",
	}, io.Discard)
	require.NoError(t, err)

	base := config.Default()
	base.Audio.FrameSize = 4096
	base.Device.MusicPort = 50000

	cfg := applyFlags(base, opts)
	assert.Equal(t, "192.168.1.20", cfg.Device.Address)
	assert.Equal(t, 25, cfg.Color.MaxBrightness)
	assert.Equal(t, 40*time.Millisecond, cfg.Audio.Latency)
	assert.Equal(t, config.LogLevelDebug, cfg.Log.Level)

	// flag defaults never clobber file or env values
	assert.Equal(t, 4096, cfg.Audio.FrameSize)
	assert.Equal(t, 50000, cfg.Device.MusicPort)
	assert.Equal(t, base.Audio.SampleRate, cfg.Audio.SampleRate)
	assert.False(t, cfg.Log.Visualize)
}

func TestMusicPortFlagDefaultsToConfig(t *testing.T) {
	opts, err := parseCLIFlags(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Device.MusicPort, opts.musicPort)
	assert.Equal(t, config.DefaultMusicPort, opts.musicPort)
}

func TestParseCLIFlagsRejectsUnknownFlag(t *testing.T) {
	_, err := parseCLIFlags([]string{"-nope"}, io.Discard)
	assert.Error(t, err)
}

func TestLoadConfigAppliesEnvThenFlags(t *testing.T) {
	t.Setenv(config.EnvAddress, "10.0.0.5")
	t.Setenv(config.EnvMusicPort, "50001")

	opts, err := parseCLIFlags([]string{"-music-port", "50002", "-env-file", t.TempDir() + "/missing.env"}, io.Discard)
	require.NoError(t, err)

	cfg, err := loadConfig(opts)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.Device.Address)
	assert.Equal(t, 50002, cfg.Device.MusicPort)
}

func TestLoadConfigValidatesFlags(t *testing.T) {
	opts, err := parseCLIFlags([]string{"-max-brightness", "0", "-env-file", t.TempDir() + "/missing.env"}, io.Discard)
	require.NoError(t, err)

	_, err = loadConfig(opts)
	assert.Error(t, err)
}

func TestErrorClass(t *testing.T) {
	assert.Equal(t, "device_connect", errorClass(eris.Wrap(yeelight.ErrAcceptTimeout, "start")))
	assert.Equal(t, "device_connect", errorClass(eris.Wrap(yeelight.ErrModeRejected, "start")))
	assert.Equal(t, "device_send", errorClass(eris.Wrap(yeelight.ErrSendFailed, "send")))
	assert.Equal(t, "audio", errorClass(eris.Wrap(audio.ErrClosed, "read")))
	assert.Equal(t, "other", errorClass(eris.New("boom")))
}
