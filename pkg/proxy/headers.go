package proxy

import "strings"

// AllowedHeaders are the only client headers forwarded to the origin.
// Names are compared exactly, including case.
var AllowedHeaders = []string{
	"Authorization",
	"From",
	"If-Modified-Since",
	"Referer",
	"User-Agent",
}

// HeaderLine is a client header line with its name split off.
type HeaderLine struct {
	Name string
	Raw  string
}

// FilterHeaders keeps the lines whose name is allow-listed, verbatim and in
// their original order. Everything else, including lines without a colon,
// is dropped.
func FilterHeaders(lines []string) []HeaderLine {
	kept := make([]HeaderLine, 0, len(lines))
	for _, line := range lines {
		name, _, ok := strings.Cut(line, ":")
		if !ok || !isAllowed(name) {
			continue
		}
		kept = append(kept, HeaderLine{Name: name, Raw: line})
	}
	return kept
}

func isAllowed(name string) bool {
	for _, allowed := range AllowedHeaders {
		if name == allowed {
			return true
		}
	}
	return false
}
