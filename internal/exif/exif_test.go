package exif

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkivisto/fieldlog/internal/errors"
)

// tiffWithDateTimeOriginal builds a minimal little-endian TIFF whose Exif
// sub-IFD carries DateTimeOriginal. The stamp must be the 19-character
// EXIF layout.
func tiffWithDateTimeOriginal(stamp string) []byte {
	buf := &bytes.Buffer{}
	le := binary.LittleEndian
	b2 := func(v uint16) { _ = binary.Write(buf, le, v) }
	b4 := func(v uint32) { _ = binary.Write(buf, le, v) }

	buf.WriteString("II")
	b2(0x2A)
	b4(8) // IFD0 offset

	// IFD0: single pointer to the Exif sub-IFD
	b2(1)
	b2(0x8769) // ExifIFDPointer
	b2(4)      // LONG
	b4(1)
	b4(26) // sub-IFD offset
	b4(0)  // no next IFD

	// Exif sub-IFD: DateTimeOriginal as ASCII
	b2(1)
	b2(0x9003)
	b2(2) // ASCII
	b4(20)
	b4(44) // value offset
	b4(0)

	buf.WriteString(stamp)
	buf.WriteByte(0)
	return buf.Bytes()
}

// tiffWithDateTimeOnly builds a TIFF carrying only the IFD0 DateTime tag,
// the shape scans and exports tend to have.
func tiffWithDateTimeOnly(stamp string) []byte {
	buf := &bytes.Buffer{}
	le := binary.LittleEndian
	b2 := func(v uint16) { _ = binary.Write(buf, le, v) }
	b4 := func(v uint32) { _ = binary.Write(buf, le, v) }

	buf.WriteString("II")
	b2(0x2A)
	b4(8)

	b2(1)
	b2(0x0132) // DateTime
	b2(2)      // ASCII
	b4(20)
	b4(26) // value offset
	b4(0)

	buf.WriteString(stamp)
	buf.WriteByte(0)
	return buf.Bytes()
}

// tiffWithoutTimestamps builds a TIFF whose only tag is Orientation.
func tiffWithoutTimestamps() []byte {
	buf := &bytes.Buffer{}
	le := binary.LittleEndian
	b2 := func(v uint16) { _ = binary.Write(buf, le, v) }
	b4 := func(v uint32) { _ = binary.Write(buf, le, v) }

	buf.WriteString("II")
	b2(0x2A)
	b4(8)

	b2(1)
	b2(0x0112) // Orientation
	b2(3)      // SHORT
	b4(1)
	b4(1) // inline value
	b4(0)

	return buf.Bytes()
}

func writeImage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.jpg")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestCaptureTimeReadsDateTimeOriginal(t *testing.T) {
	t.Parallel()

	path := writeImage(t, tiffWithDateTimeOriginal("2026:08:15 14:30:00"))

	got, err := CaptureTime(path, time.UTC)
	require.NoError(t, err)
	assert.True(t, time.Date(2026, time.August, 15, 14, 30, 0, 0, time.UTC).Equal(got))
}

func TestCaptureTimeInterpretsInLocation(t *testing.T) {
	t.Parallel()

	helsinki, err := time.LoadLocation("Europe/Helsinki")
	require.NoError(t, err)

	path := writeImage(t, tiffWithDateTimeOriginal("2026:08:15 14:30:00"))

	got, err := CaptureTime(path, helsinki)
	require.NoError(t, err)
	// The wall-clock reading is 14:30 in the journal timezone
	assert.True(t, time.Date(2026, time.August, 15, 14, 30, 0, 0, helsinki).Equal(got))
	assert.Equal(t, 14, got.In(helsinki).Hour())
}

func TestCaptureTimeFallsBackToDateTime(t *testing.T) {
	t.Parallel()

	path := writeImage(t, tiffWithDateTimeOnly("2025:12:01 08:05:59"))

	got, err := CaptureTime(path, time.UTC)
	require.NoError(t, err)
	assert.True(t, time.Date(2025, time.December, 1, 8, 5, 59, 0, time.UTC).Equal(got))
}

func TestCaptureTimeMissingTimestamp(t *testing.T) {
	t.Parallel()

	path := writeImage(t, tiffWithoutTimestamps())

	_, err := CaptureTime(path, time.UTC)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestCaptureTimeUnreadableMetadata(t *testing.T) {
	t.Parallel()

	path := writeImage(t, []byte("definitely not an image"))

	_, err := CaptureTime(path, time.UTC)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestCaptureTimeMalformedStamp(t *testing.T) {
	t.Parallel()

	path := writeImage(t, tiffWithDateTimeOriginal("2026-08-15T14:30:00"))

	_, err := CaptureTime(path, time.UTC)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
}

func TestCaptureTimeMissingFile(t *testing.T) {
	t.Parallel()

	_, err := CaptureTime(filepath.Join(t.TempDir(), "nope.jpg"), time.UTC)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}
