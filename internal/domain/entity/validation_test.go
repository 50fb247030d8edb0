package entity

import (
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEndpointURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{
			name:    "empty url",
			url:     "",
			wantErr: "URL is required",
		},
		{
			name:    "http scheme rejected",
			url:     "http://hooks.example.invalid/token",
			wantErr: "https",
		},
		{
			name:    "relative url rejected",
			url:     "/hooks/token",
			wantErr: "https",
		},
		{
			name:    "missing host",
			url:     "https:///token",
			wantErr: "host",
		},
		{
			name:    "loopback address rejected",
			url:     "https://127.0.0.1/token",
			wantErr: "private network",
		},
		{
			name:    "private network address rejected",
			url:     "https://10.20.30.40/token",
			wantErr: "private network",
		},
		{
			name:    "cloud metadata address rejected",
			url:     "https://169.254.169.254/token",
			wantErr: "private network",
		},
		{
			name: "over-long url rejected",
			url:  "https://hooks.example.invalid/" + strings.Repeat("a", 2048),
			wantErr: "2048",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpointURL(tt.url)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateEndpointURL_UnresolvableHostPasses(t *testing.T) {
	// Endpoints that only resolve from the production network must not be
	// rejected by the local lookup.
	err := ValidateEndpointURL("https://hooks.example.invalid/token")
	assert.NoError(t, err)
}

func TestValidateEndpointURL_ReturnsValidationError(t *testing.T) {
	err := ValidateEndpointURL("https://127.0.0.1/token")
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "url", verr.Field)
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		name    string
		ip      string
		private bool
	}{
		{"loopback v4", "127.0.0.1", true},
		{"loopback v6", "::1", true},
		{"link local", "169.254.169.254", true},
		{"rfc1918 10/8", "10.1.2.3", true},
		{"rfc1918 172.16/12", "172.20.0.1", true},
		{"rfc1918 192.168/16", "192.168.1.1", true},
		{"public v4", "93.184.216.34", false},
		{"public v6", "2606:2800:220:1::1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			require.NotNil(t, ip)
			assert.Equal(t, tt.private, isPrivateIP(ip))
		})
	}
}
