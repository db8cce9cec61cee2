package proxy

import "strings"

// BuildRequest assembles the outbound HTTP/1.0 request:
//
//	GET <path> HTTP/1.0\r\n
//	<header line>\r\n ...
//	\r\n
func BuildRequest(path string, headers []HeaderLine) string {
	var sb strings.Builder
	sb.WriteString("GET ")
	sb.WriteString(path)
	sb.WriteString(" HTTP/1.0\r\n")
	for _, h := range headers {
		sb.WriteString(h.Raw)
		sb.WriteString("\r\n")
	}
	sb.WriteString("\r\n")
	return sb.String()
}
