package target

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseHTTP reads the line-oriented HTTP target format described in §4.1:
// each record begins with `METHOD URL`, followed by `Name: Value` header
// lines, an optional `@path` or `Body:` body introducer, and a blank line
// separator. Lines beginning with `#` are comments. tlsImplied controls the
// scheme used to reconstruct `METHOD PATH HTTP/1.1`-style records that
// carry only a Host: header: https when true, http otherwise.
func ParseHTTP(r io.Reader, tlsImplied bool) ([]*Target, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var targets []*Target
	for {
		block, lineNo, err := readHTTPBlock(br)
		if len(block) > 0 {
			t, perr := parseHTTPBlock(block, lineNo, tlsImplied)
			if perr != nil {
				return nil, perr
			}
			targets = append(targets, t)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("target: scanning input: %w", err)
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("target: no targets found in input")
	}
	return targets, nil
}

// readHTTPBlock reads lines from br up to (and consuming) the next blank
// line or EOF, skipping comment lines, and returns the non-comment lines
// that belong to the next record along with the line number the record
// started at (for error messages). It returns io.EOF once nothing more can
// be read, even if a final block was returned alongside it.
func readHTTPBlock(br *bufio.Reader) (lines []string, startLine int, err error) {
	started := false
	lineNo := 0
	for {
		line, rerr := br.ReadString('\n')
		if line != "" {
			lineNo++
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				if started {
					return lines, startLine, nil
				}
			} else if strings.HasPrefix(trimmed, "#") {
				// comment, skip
			} else {
				if !started {
					started = true
					startLine = lineNo
				}
				lines = append(lines, strings.TrimRight(line, "\r\n"))
			}
		}
		if rerr != nil {
			return lines, startLine, io.EOF
		}
	}
}

// parseHTTPBlock turns the non-comment lines of one record into a Target.
func parseHTTPBlock(lines []string, startLine int, tlsImplied bool) (*Target, error) {
	method, url, ok := splitRequestLine(lines[0])
	if !ok {
		return nil, fmt.Errorf("target: line %d: expected \"METHOD URL\", got %q", startLine, lines[0])
	}
	t := &Target{Method: method, URL: url}
	if strings.Contains(url, "{{") {
		t.URLTemplate = url
	}

	var bodyLines []string
	inBody := false
	for i := 1; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if inBody {
			bodyLines = append(bodyLines, line)
			continue
		}
		if strings.HasPrefix(trimmed, "@") {
			path := strings.TrimSpace(trimmed[1:])
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("target: line %d: reading body file %q: %w", startLine+i, path, err)
			}
			t.Body = data
			continue
		}
		if strings.EqualFold(trimmed, "Body:") {
			inBody = true
			continue
		}
		name, value, ok := splitHeaderLine(trimmed)
		if !ok {
			return nil, fmt.Errorf("target: line %d: expected \"Name: Value\" header, got %q", startLine+i, trimmed)
		}
		t.Headers = append(t.Headers, Header{Name: name, Value: value})
	}
	if len(bodyLines) > 0 {
		body := strings.Join(bodyLines, "\n")
		if strings.Contains(body, "{{") {
			t.BodyTemplate = body
		} else {
			t.Body = []byte(body)
		}
	}

	if strings.HasPrefix(t.URL, "pending://") {
		if err := resolvePendingURL(t, tlsImplied); err != nil {
			return nil, fmt.Errorf("target: line %d: %w", startLine, err)
		}
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("target: line %d: %w", startLine, err)
	}
	return t, nil
}

// splitRequestLine accepts both `METHOD URL` and the HTTP/1.1-style
// `METHOD PATH HTTP/1.1` form (requiring a later Host: header, resolved in
// resolvePendingURL), returning ok=false for anything else.
func splitRequestLine(line string) (method, url string, ok bool) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 2:
		return fields[0], fields[1], true
	case 3:
		if strings.HasPrefix(fields[2], "HTTP/") {
			// Deferred: the path-only form needs a Host: header to become
			// an absolute URL; mark it with a sentinel scheme so it is not
			// rejected before resolvePendingURL runs.
			return fields[0], "pending://" + fields[1], true
		}
	}
	return "", "", false
}

func splitHeaderLine(line string) (name, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	name = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	if name == "" {
		return "", "", false
	}
	return name, value, true
}

// resolvePendingURL turns a `pending://path` sentinel (left by
// splitRequestLine for a `METHOD PATH HTTP/1.1` record) into an absolute
// URL using the record's Host: header, per §4.1.
func resolvePendingURL(t *Target, tlsImplied bool) error {
	path := strings.TrimPrefix(t.URL, "pending://")
	var host string
	for _, h := range t.Headers {
		if CanonicalHeaderName(h.Name) == CanonicalHeaderName("Host") {
			host = h.Value
			break
		}
	}
	if host == "" {
		return fmt.Errorf("METHOD PATH HTTP/1.1 record requires a Host: header")
	}
	scheme := "http"
	if tlsImplied {
		scheme = "https"
	}
	t.URL = scheme + "://" + host + path
	return nil
}
