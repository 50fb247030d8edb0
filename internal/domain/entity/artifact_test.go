package entity

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCookies(base uint64) []Cookie {
	return []Cookie{
		{Domain: ".example.com", HostOnly: false, Path: "/", Secure: true, ExpiresAt: base + 7200, Name: "SID", Value: "sid-value"},
		{Domain: ".example.com", HostOnly: false, Path: "/", Secure: true, ExpiresAt: base + 3600, Name: "HSID", Value: "hsid-value"},
		{Domain: "media.example.com", HostOnly: true, Path: "/watch", Secure: false, ExpiresAt: 0, Name: "PREF", Value: "vol=50"},
	}
}

func TestArtifactEncodeDecodeRoundTrip(t *testing.T) {
	now := uint64(time.Now().Unix())
	original := NewArtifact(sampleCookies(now))

	decoded, err := Decode(original.Encode())
	require.NoError(t, err)

	if diff := cmp.Diff(original.Cookies, decoded.Cookies); diff != "" {
		t.Errorf("records changed across encode/decode (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsMissingHeader(t *testing.T) {
	content := ".example.com\tFALSE\t/\tTRUE\t0\tSID\tvalue\n"

	_, err := Decode([]byte(content))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))
}

func TestDecodeRejectsEmptyContent(t *testing.T) {
	for _, content := range []string{"", "   \n\n  "} {
		_, err := Decode([]byte(content))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidationFailed))
	}
}

func TestDecodeHeaderMustAppearEarly(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteString("# filler comment\n")
	}
	b.WriteString("# Netscape HTTP Cookie File\n")
	b.WriteString(".example.com\tFALSE\t/\tTRUE\t0\tSID\tvalue\n")

	_, err := Decode([]byte(b.String()))
	assert.True(t, errors.Is(err, ErrValidationFailed))
}

func TestDecodeAcceptsLegacyHeader(t *testing.T) {
	content := "# HTTP Cookie File\n.example.com\tFALSE\t/\tTRUE\t0\tSID\tvalue\n"

	a, err := Decode([]byte(content))
	require.NoError(t, err)
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, "SID", a.Cookies[0].Name)
}

func TestDecodeSkipsMalformedLines(t *testing.T) {
	content := strings.Join([]string{
		"# Netscape HTTP Cookie File",
		"not a record at all",
		".example.com\tFALSE\t/\tTRUE\tnot-a-number\tSID\tvalue",
		".example.com\tFALSE\t/\tTRUE\t0\tSSID\tgood",
		"",
	}, "\n")

	a, err := Decode([]byte(content))
	require.NoError(t, err)
	require.Equal(t, 1, a.Len())
	assert.Equal(t, "SSID", a.Cookies[0].Name)
}

func TestDecodeFailsWhenNoWellFormedRecords(t *testing.T) {
	content := "# Netscape HTTP Cookie File\ngarbage line\n"

	_, err := Decode([]byte(content))
	assert.True(t, errors.Is(err, ErrValidationFailed))
}

func TestRequiredCountAndHasRequired(t *testing.T) {
	now := uint64(time.Now().Unix())

	a := NewArtifact(sampleCookies(now))
	assert.Equal(t, 2, a.RequiredCount())
	assert.True(t, a.HasRequired())

	onlyExtras := NewArtifact([]Cookie{
		{Domain: ".example.com", Path: "/", Name: "PREF", Value: "x", ExpiresAt: 0},
	})
	assert.Equal(t, 0, onlyExtras.RequiredCount())
	assert.False(t, onlyExtras.HasRequired())
}

func TestValid(t *testing.T) {
	now := uint64(time.Now().Unix())

	assert.True(t, Valid(NewArtifact(sampleCookies(now)).Encode()))

	noRequired := NewArtifact([]Cookie{
		{Domain: ".example.com", Path: "/", Name: "PREF", Value: "x"},
	})
	assert.False(t, Valid(noRequired.Encode()))

	assert.False(t, Valid([]byte("no header here")))
}

func TestNearestRequiredExpiry(t *testing.T) {
	now := time.Now()
	base := uint64(now.Unix())

	a := NewArtifact(sampleCookies(base))
	left, ok := a.NearestRequiredExpiry(now)
	require.True(t, ok)
	// HSID at base+3600 is the nearest required record; PREF at base+0 is
	// session-scoped and must not win.
	assert.InDelta(t, float64(time.Hour), float64(left), float64(2*time.Second))
}

func TestNearestRequiredExpiryNoFixedExpiry(t *testing.T) {
	a := NewArtifact([]Cookie{
		{Domain: ".example.com", Path: "/", Name: "SID", Value: "x", ExpiresAt: 0},
		{Domain: ".example.com", Path: "/", Name: "PREF", Value: "y", ExpiresAt: 12345},
	})

	_, ok := a.NearestRequiredExpiry(time.Now())
	assert.False(t, ok)
}

func TestEncodeBooleanLiterals(t *testing.T) {
	a := NewArtifact([]Cookie{
		{Domain: "host.example.com", HostOnly: true, Path: "/", Secure: false, ExpiresAt: 1, Name: "SID", Value: "v"},
	})

	out := string(a.Encode())
	assert.Contains(t, out, "host.example.com\tTRUE\t/\tFALSE\t1\tSID\tv\n")
	assert.True(t, strings.HasPrefix(out, "# Netscape HTTP Cookie File\n"))
}
