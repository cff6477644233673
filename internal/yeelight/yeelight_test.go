package yeelight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "192.168.1.20", want: "192.168.1.20:55443"},
		{in: "192.168.1.20:1234", want: "192.168.1.20:1234"},
		{in: "not-an-ip", wantErr: true},
		{in: "192.168.1.20:99999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			addr, err := ParseAddress(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr.String())
		})
	}
}

func TestParseDiscoveryResponse(t *testing.T) {
	resp := "HTTP/1.1 200 OK\r\n" +
		"Cache-Control: max-age=3600\r\n" +
		"Location: yeelight://192.168.1.239:55443\r\n" +
		"Server: POSIX UPnP/1.0 YGLC/1\r\n" +
		"id: 0x000000000015243f\r\n" +
		"model: color\r\n" +
		"fw_ver: 18\r\n" +
		"support: get_prop set_default set_power toggle set_bright set_music\r\n" +
		"power: on\r\n" +
		"bright: 100\r\n" +
		"name: desk\r\n"

	info, err := parseDiscoveryResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.239:55443", info.Addr.String())
	assert.Equal(t, "0x000000000015243f", info.ID)
	assert.Equal(t, "color", info.Model)
	assert.Equal(t, "18", info.FirmwareVersion)
	assert.Equal(t, "on", info.Power)
	assert.Equal(t, 100, info.Brightness)
	assert.Equal(t, "desk", info.Name)
	assert.True(t, info.Supports("set_music"))
	assert.False(t, info.Supports("start_cf"))
	assert.Equal(t, "desk (192.168.1.239:55443)", info.Label())
}

func TestParseDiscoveryResponseWithoutLocation(t *testing.T) {
	_, err := parseDiscoveryResponse("HTTP/1.1 200 OK\r\nid: 0x1\r\n")
	assert.Error(t, err)

	_, err = parseDiscoveryResponse("Location: http://192.168.1.2\r\n")
	assert.Error(t, err)
}
