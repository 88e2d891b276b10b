package csv

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const utf8BOM = "\uFEFF"

// StripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
// The decoder already drops a leading BOM; this catches files that were
// concatenated after decoding.
func StripHeaderBOM(headers []string) []string {
	if len(headers) == 0 {
		return headers
	}
	if strings.HasPrefix(headers[0], utf8BOM) {
		headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	}
	return headers
}

// decoder wraps src so that the csv reader always sees valid UTF-8. Invalid
// byte sequences in UTF-8 input are replaced with U+FFFD rather than failing
// the whole file.
func decoder(src io.Reader, enc string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", "utf-8", "utf8":
		return transform.NewReader(src, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	case "utf-16", "utf16":
		return transform.NewReader(src, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(src, charmap.Windows1252.NewDecoder()), nil
	case "latin1", "iso-8859-1":
		return transform.NewReader(src, charmap.ISO8859_1.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("csv: unsupported encoding %q", enc)
	}
}
