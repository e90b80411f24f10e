package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointForPage(t *testing.T) {
	tests := []struct {
		name    string
		page    string
		path    string
		port    int
		want    string
		wantErr bool
	}{
		{"https upgrades to wss", "https://dash.example.com/agents", "", 0, "wss://dash.example.com/ws/status", false},
		{"http uses ws", "http://localhost:3000/", "", 0, "ws://localhost:3000/ws/status", false},
		{"port override", "http://localhost:3000/", "/ws", 8001, "ws://localhost:8001/ws", false},
		{"relative path", "https://dash.example.com", "events", 0, "wss://dash.example.com/events", false},
		{"no host", "/agents", "", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EndpointForPage(tt.page, tt.path, tt.port)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildURL(t *testing.T) {
	got, err := BuildURL("wss://dash.example.com/ws/status", "a b&c")
	require.NoError(t, err)
	assert.Equal(t, "wss://dash.example.com/ws/status?token=a+b%26c", got)

	got, err = BuildURL("ws://localhost:8001/ws/status?client=web", "t1")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8001/ws/status?client=web&token=t1", got)

	got, err = BuildURL("ws://localhost:8001/ws/status", "")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8001/ws/status", got)

	_, err = BuildURL("https://dash.example.com/ws/status", "t1")
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "ws://h/ws/status?token=REDACTED", RedactURL("ws://h/ws/status?token=s3cret"))
	assert.Equal(t, "ws://h/ws/status", RedactURL("ws://h/ws/status"))
	assert.Equal(t, "<invalid url>", RedactURL("ws://%zz"))
}
