package vfs

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ErrBinaryContent is returned by DecodeLines for content that looks binary.
var ErrBinaryContent = errors.New("binary content")

// Encoding represents a character encoding.
type Encoding string

const (
	// EncodingUTF8 is UTF-8 encoding (default).
	EncodingUTF8 Encoding = "utf-8"

	// EncodingUTF8BOM is UTF-8 encoding with BOM.
	EncodingUTF8BOM Encoding = "utf-8-bom"

	// EncodingUTF16LE is UTF-16 Little Endian.
	EncodingUTF16LE Encoding = "utf-16le"

	// EncodingUTF16BE is UTF-16 Big Endian.
	EncodingUTF16BE Encoding = "utf-16be"

	// EncodingLatin1 is ISO-8859-1 (Latin-1).
	EncodingLatin1 Encoding = "iso-8859-1"
)

// BOM (Byte Order Mark) constants
var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectEncoding checks for BOM markers first, then validates UTF-8.
// Falls back to Latin-1 which accepts all byte sequences.
func DetectEncoding(content []byte) Encoding {
	switch {
	case bytes.HasPrefix(content, bomUTF8):
		return EncodingUTF8BOM
	case bytes.HasPrefix(content, bomUTF16LE):
		return EncodingUTF16LE
	case bytes.HasPrefix(content, bomUTF16BE):
		return EncodingUTF16BE
	case utf8.Valid(content):
		return EncodingUTF8
	default:
		return EncodingLatin1
	}
}

// IsBinary reports whether content appears to be binary.
// It looks for NUL bytes or a high ratio of control characters in the
// first 8KB.
func IsBinary(content []byte) bool {
	checkLen := len(content)
	if checkLen > 8192 {
		checkLen = 8192
	}
	if checkLen == 0 {
		return false
	}

	controlCount := 0
	for i := 0; i < checkLen; i++ {
		b := content[i]
		if b == 0 {
			return true
		}
		if b < 32 && b != '\t' && b != '\n' && b != '\r' && b != '\f' && b != '\v' {
			controlCount++
		}
	}

	return controlCount*10 > checkLen
}

// Decode converts content to a UTF-8 string. UTF-16 is only recognised by
// its BOM, so binary detection runs after the BOM check.
func Decode(content []byte) (string, error) {
	enc := DetectEncoding(content)

	var dec encoding.Encoding
	switch enc {
	case EncodingUTF8BOM:
		return string(content[len(bomUTF8):]), nil
	case EncodingUTF16LE:
		dec = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
	case EncodingUTF16BE:
		dec = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
	default:
		if IsBinary(content) {
			return "", ErrBinaryContent
		}
		if enc == EncodingUTF8 {
			return string(content), nil
		}
		dec = charmap.ISO8859_1
	}

	out, err := dec.NewDecoder().Bytes(content)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", enc, err)
	}
	return string(out), nil
}

// DecodeLines decodes content and splits it into lines.
func DecodeLines(content []byte) ([]string, error) {
	text, err := Decode(content)
	if err != nil {
		return nil, err
	}
	return SplitLines(text), nil
}

// SplitLines splits on "\n" and trims one trailing "\r" from each line.
// A trailing newline does not produce an extra empty line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
