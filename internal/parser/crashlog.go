package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/crashscan/backend/internal/models"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultMinLines is the shortest log that is still worth scanning.
const DefaultMinLines = 20

// ErrMalformedLog is returned for logs too short to contain a crash report.
var ErrMalformedLog = errors.New("malformed crash log")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadCrashLog reads and decodes a crash log from disk.
func LoadCrashLog(path string) (*models.CrashLog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	log, err := ParseCrashLog(filepath.Base(path), file)
	if err != nil {
		return nil, err
	}
	log.Path = path
	return log, nil
}

// ParseCrashLog reads a crash log from r. name is used as the log identity
// when the log does not come from disk.
func ParseCrashLog(name string, r io.Reader) (*models.CrashLog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	text, err := DecodeText(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}

	return &models.CrashLog{
		Path:  name,
		Name:  filepath.Base(name),
		Lines: SplitLines(text),
	}, nil
}

// DecodeText turns raw log bytes into a string. UTF-16 without a BOM is
// recognized by its NUL bytes. Valid UTF-8 is used as is (minus a BOM);
// anything else goes through BOM detection and falls back to Windows-1252,
// which maps every byte and so never fails on garbage.
func DecodeText(data []byte) (string, error) {
	if order, ok := utf16Order(data); ok {
		return decode(unicode.UTF16(order, unicode.UseBOM).NewDecoder(), data)
	}
	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	}
	return decode(unicode.BOMOverride(charmap.Windows1252.NewDecoder()), data)
}

func decode(t transform.Transformer, data []byte) (string, error) {
	out, _, err := transform.Bytes(t, data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// utf16SniffLen is how much of a log utf16Order looks at.
const utf16SniffLen = 4096

// utf16Order guesses the byte order of UTF-16 text from where its NUL bytes
// sit. Mostly ASCII text has a NUL in most high bytes and almost none in the
// low ones; UTF-8 text has no NULs at all.
func utf16Order(data []byte) (unicode.Endianness, bool) {
	sample := data
	if len(sample) > utf16SniffLen {
		sample = sample[:utf16SniffLen]
	}
	sample = sample[:len(sample)&^1]
	if len(sample) < 4 {
		return unicode.LittleEndian, false
	}

	var even, odd int
	for i := 0; i < len(sample); i += 2 {
		if sample[i] == 0 {
			even++
		}
		if sample[i+1] == 0 {
			odd++
		}
	}
	pairs := len(sample) / 2
	switch {
	case odd*2 > pairs && even*4 < odd:
		return unicode.LittleEndian, true
	case even*2 > pairs && odd*4 < even:
		return unicode.BigEndian, true
	}
	return unicode.LittleEndian, false
}

// SplitLines splits text on newlines and drops carriage returns.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// ValidateCrashLog rejects logs with fewer than minLines lines.
func ValidateCrashLog(log *models.CrashLog, minLines int) error {
	if minLines <= 0 {
		minLines = DefaultMinLines
	}
	if len(log.Lines) < minLines {
		return fmt.Errorf("%w: %s has %d lines, need at least %d", ErrMalformedLog, log.Name, len(log.Lines), minLines)
	}
	return nil
}
