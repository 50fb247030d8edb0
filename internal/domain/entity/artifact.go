// Package entity defines the domain model of the session keeper: the
// credential artifact, its wire format, and the failure taxonomy shared by
// the resilience components.
package entity

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RequiredNames is the set of record names that indicate a live
// authenticated session. An artifact without at least one of these is
// useless to the consumer regardless of how well-formed it is.
var RequiredNames = map[string]struct{}{
	"SID":     {},
	"HSID":    {},
	"SSID":    {},
	"APISID":  {},
	"SAPISID": {},
}

const (
	// formatHeader identifies the line-oriented artifact file format.
	formatHeader = "# Netscape HTTP Cookie File"

	// altFormatHeader is an accepted legacy header variant.
	altFormatHeader = "# HTTP Cookie File"

	recordFields = 7
)

// Cookie is a single credential record. ExpiresAt is seconds since the Unix
// epoch; zero means the record is session-scoped with no fixed expiry.
type Cookie struct {
	Domain    string
	HostOnly  bool
	Path      string
	Secure    bool
	ExpiresAt uint64
	Name      string
	Value     string
}

// IsRequired reports whether the record name is in the RequiredNames set.
func (c Cookie) IsRequired() bool {
	_, ok := RequiredNames[c.Name]
	return ok
}

// Artifact is an immutable ordered bundle of credential records. A refresh
// always produces a brand-new Artifact; records are never edited in place.
type Artifact struct {
	Cookies     []Cookie
	GeneratedAt time.Time
}

// NewArtifact builds an artifact from records read out of the browser,
// stamped with the current time.
func NewArtifact(cookies []Cookie) *Artifact {
	return &Artifact{
		Cookies:     cookies,
		GeneratedAt: time.Now().UTC(),
	}
}

// Len returns the number of records in the artifact.
func (a *Artifact) Len() int {
	return len(a.Cookies)
}

// RequiredCount returns how many records carry a required session name.
func (a *Artifact) RequiredCount() int {
	n := 0
	for _, c := range a.Cookies {
		if c.IsRequired() {
			n++
		}
	}
	return n
}

// HasRequired reports whether the artifact carries at least one required
// session record. Together with a successful Decode this is the full
// validity condition for serving the artifact.
func (a *Artifact) HasRequired() bool {
	return a.RequiredCount() > 0
}

// NearestRequiredExpiry returns the time remaining until the earliest
// expiry among required records with a fixed expiry. The second return is
// false when no required record has a fixed expiry (all session-scoped or
// none present), in which case the caller should assume a normal cadence.
func (a *Artifact) NearestRequiredExpiry(now time.Time) (time.Duration, bool) {
	var nearest time.Duration
	found := false
	for _, c := range a.Cookies {
		if !c.IsRequired() || c.ExpiresAt == 0 {
			continue
		}
		left := time.Unix(int64(c.ExpiresAt), 0).Sub(now)
		if !found || left < nearest {
			nearest = left
			found = true
		}
	}
	return nearest, found
}

// Encode serializes the artifact into the tab-separated file format:
// a comment header followed by one record per line with the fields
// domain, hostOnly, path, secure, expiresAtEpoch, name, value. Boolean
// fields serialize as the literals TRUE and FALSE.
func (a *Artifact) Encode() []byte {
	var b bytes.Buffer
	b.WriteString(formatHeader + "\n")
	fmt.Fprintf(&b, "# Generated by session-keeper at %s\n", a.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "# Required records: %d/%d\n", a.RequiredCount(), len(RequiredNames))
	b.WriteString("\n")
	for _, c := range a.Cookies {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			c.Domain, boolLiteral(c.HostOnly), c.Path, boolLiteral(c.Secure),
			c.ExpiresAt, c.Name, c.Value)
	}
	return b.Bytes()
}

// Decode parses artifact file content. It fails with ErrValidationFailed
// when the structural format check fails: the header must appear within the
// first five lines and at least one well-formed record line must exist.
// Malformed record lines beyond that are skipped, matching the tolerant
// read behavior expected from recovered tier files.
func Decode(data []byte) (*Artifact, error) {
	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, fmt.Errorf("empty content: %w", ErrValidationFailed)
	}

	lines := strings.Split(content, "\n")
	if !hasFormatHeader(lines) {
		return nil, fmt.Errorf("missing format header: %w", ErrValidationFailed)
	}

	var cookies []Cookie
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		c, ok := parseRecord(line)
		if !ok {
			continue
		}
		cookies = append(cookies, c)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("no well-formed records: %w", ErrValidationFailed)
	}

	return &Artifact{Cookies: cookies, GeneratedAt: time.Now().UTC()}, nil
}

// Valid reports whether raw content passes both acceptance gates:
// structural format validity and the required-names check.
func Valid(data []byte) bool {
	a, err := Decode(data)
	return err == nil && a.HasRequired()
}

func hasFormatHeader(lines []string) bool {
	limit := 5
	if len(lines) < limit {
		limit = len(lines)
	}
	for _, line := range lines[:limit] {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, formatHeader) || strings.HasPrefix(trimmed, altFormatHeader) {
			return true
		}
	}
	return false
}

func parseRecord(line string) (Cookie, bool) {
	parts := strings.Split(line, "\t")
	if len(parts) < recordFields {
		return Cookie{}, false
	}
	expires, err := strconv.ParseUint(parts[4], 10, 64)
	if err != nil {
		return Cookie{}, false
	}
	return Cookie{
		Domain:    parts[0],
		HostOnly:  strings.EqualFold(parts[1], "TRUE"),
		Path:      parts[2],
		Secure:    strings.EqualFold(parts[3], "TRUE"),
		ExpiresAt: expires,
		Name:      parts[5],
		Value:     parts[6],
	}, true
}

func boolLiteral(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}
