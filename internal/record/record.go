// Package record splits comma-separated text lines into fields.
package record

import "strings"

// Split breaks line on commas and strips one layer of surrounding double
// quotes from each field. Embedded delimiters and doubled quotes are not
// unescaped, and malformed quoting passes through unchanged. A trailing line
// terminator is ignored.
func Split(line string) []string {
	line = TrimEOL(line)
	fields := strings.Split(line, ",")
	for i, f := range fields {
		fields[i] = Unquote(f)
	}
	return fields
}

// Unquote removes at most one leading and one trailing double quote from a
// single field. A trailing quote followed by a line terminator also counts.
func Unquote(field string) string {
	field = strings.TrimPrefix(field, `"`)
	switch {
	case strings.HasSuffix(field, "\"\r\n"):
		return field[:len(field)-3]
	case strings.HasSuffix(field, "\"\n"):
		return field[:len(field)-2]
	case strings.HasSuffix(field, `"`):
		return field[:len(field)-1]
	}
	return field
}

// TrimEOL drops a single trailing "\n" or "\r\n".
func TrimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
