package target

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHTTPBasic(t *testing.T) {
	input := `GET http://localhost:8080/
Header-A: value-a

POST http://localhost:8080/create
Content-Type: application/json
Body:
{"ok":true}

# a comment record
GET http://localhost:8080/ping
`
	targets, err := ParseHTTP(strings.NewReader(input), false)
	require.NoError(t, err)
	require.Len(t, targets, 3)

	require.Equal(t, "GET", targets[0].Method)
	require.Equal(t, "http://localhost:8080/", targets[0].URL)
	require.Len(t, targets[0].Headers, 1)
	require.Equal(t, "Header-A", targets[0].Headers[0].Name)

	require.Equal(t, "POST", targets[1].Method)
	require.Equal(t, `{"ok":true}`, string(targets[1].Body))

	require.Equal(t, "GET", targets[2].Method)
	require.Equal(t, "http://localhost:8080/ping", targets[2].URL)
}

func TestParseHTTPHostForm(t *testing.T) {
	input := "GET / HTTP/1.1\nHost: example.com\n"
	targets, err := ParseHTTP(strings.NewReader(input), false)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, "http://example.com/", targets[0].URL)
}

func TestParseHTTPMissingHostFails(t *testing.T) {
	input := "GET / HTTP/1.1\n"
	_, err := ParseHTTP(strings.NewReader(input), false)
	require.Error(t, err)
}

func TestParseHTTPMalformedAbortsStartup(t *testing.T) {
	input := "NOT A REQUEST LINE\n"
	_, err := ParseHTTP(strings.NewReader(input), false)
	require.Error(t, err)
}

func TestParseJSONLines(t *testing.T) {
	input := `{"method":"GET","url":"http://localhost:8080/"}
{"method":"POST","url":"http://localhost:8080/x","header":{"X-A":["1","2"]},"body":"hi"}
`
	targets, err := ParseJSON(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.Equal(t, "GET", targets[0].Method)
	require.Len(t, targets[1].Headers, 2)
	require.Equal(t, "hi", string(targets[1].Body))
}

func TestParseJSONArray(t *testing.T) {
	input := `[{"method":"GET","url":"http://localhost:8080/a"},{"method":"GET","url":"http://localhost:8080/b"}]`
	targets, err := ParseJSON(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, targets, 2)
}

func TestCycleWrapsAroundFiniteSet(t *testing.T) {
	targets := []*Target{{Method: "GET", URL: "http://a"}, {Method: "GET", URL: "http://b"}}
	c := NewCycle(targets)
	var seen []string
	for i := 0; i < 5; i++ {
		tgt, err := c.Next()
		require.NoError(t, err)
		seen = append(seen, tgt.URL)
	}
	require.Equal(t, []string{"http://a", "http://b", "http://a", "http://b", "http://a"}, seen)
}

func TestLazySourceExhaustsAtEOF(t *testing.T) {
	input := "GET http://localhost:8080/\n\nGET http://localhost:8080/2\n"
	src, err := Open(strings.NewReader(input), FormatHTTP, true, false)
	require.NoError(t, err)

	first, err := src.Next()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/", first.URL)

	second, err := src.Next()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/2", second.URL)

	_, err = src.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestEngineExpandsTemplate(t *testing.T) {
	eng := NewEngine()
	tgt := &Target{Method: "GET", URL: "http://localhost/{{.UUID}}", URLTemplate: "http://localhost/{{.UUID}}"}
	expanded, err := eng.Expand(tgt, Data{UUID: "abc-123"})
	require.NoError(t, err)
	require.Equal(t, "http://localhost/abc-123", expanded.URL)
	// original is untouched
	require.Equal(t, "http://localhost/{{.UUID}}", tgt.URL)
}

func TestEngineNoTemplateIsNoop(t *testing.T) {
	eng := NewEngine()
	tgt := &Target{Method: "GET", URL: "http://localhost/"}
	expanded, err := eng.Expand(tgt, Data{})
	require.NoError(t, err)
	require.Same(t, tgt, expanded)
}

func TestValidateRejectsBadMethodAndScheme(t *testing.T) {
	require.Error(t, (&Target{Method: "", URL: "http://x"}).Validate())
	require.Error(t, (&Target{Method: "GET", URL: "ftp://x"}).Validate())
	require.NoError(t, (&Target{Method: "GET", URL: "https://x"}).Validate())
}
