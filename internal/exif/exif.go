// Package exif extracts capture timestamps from image metadata. EXIF
// stores wall-clock time with no offset, so the journal timezone decides
// the actual instant.
package exif

import (
	"os"
	"strings"
	"time"

	goexif "github.com/rwcarlsen/goexif/exif"

	"github.com/tkivisto/fieldlog/internal/errors"
)

// exifTimeLayout is the colon-separated timestamp format EXIF mandates.
const exifTimeLayout = "2006:01:02 15:04:05"

// CaptureTime reads the capture timestamp of the image at path,
// interpreted in loc (nil means the system timezone). DateTimeOriginal is
// preferred; DateTime covers scans and exports that only carry the
// modification stamp. A not-found error means the caller should fall back
// to asking the operator, any other error means the file is unreadable.
func CaptureTime(path string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, errors.New(err).
			Component("exif").
			Category(errors.CategoryFileIO).
			Context("operation", "open-image").
			Context("path", path).
			Build()
	}
	defer func() {
		_ = f.Close()
	}()

	meta, err := goexif.Decode(f)
	if err != nil {
		return time.Time{}, errors.Newf("no readable metadata in %s: %v", path, err).
			Component("exif").
			Category(errors.CategoryNotFound).
			Context("path", path).
			Build()
	}

	raw, err := timestampField(meta)
	if err != nil {
		return time.Time{}, err
	}

	captured, err := time.ParseInLocation(exifTimeLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, errors.Newf("malformed capture timestamp %q in %s", raw, path).
			Component("exif").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}

	return captured, nil
}

// timestampField returns the first usable timestamp string from the
// decoded metadata.
func timestampField(meta *goexif.Exif) (string, error) {
	for _, field := range []goexif.FieldName{goexif.DateTimeOriginal, goexif.DateTime} {
		tag, err := meta.Get(field)
		if err != nil {
			continue
		}
		value, err := tag.StringVal()
		if err != nil || strings.TrimSpace(value) == "" {
			continue
		}
		return value, nil
	}

	return "", errors.Newf("no capture timestamp in metadata").
		Component("exif").
		Category(errors.CategoryNotFound).
		Build()
}
