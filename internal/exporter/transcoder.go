// Package exporter contains the background pipeline that turns processed
// project images into downloadable files in the requested format.
package exporter

import (
	"context"
	"fmt"
	"io"

	"photoforge/internal/types"
)

// Transcoder converts image bytes into the requested output format. The
// returned content type describes the encoded result.
type Transcoder interface {
	Transcode(ctx context.Context, src io.Reader, format types.ExportFormat, quality int) (io.Reader, string, error)
}

// contentTypes maps export formats to their MIME types.
var contentTypes = map[types.ExportFormat]string{
	types.ExportFormatJPEG: "image/jpeg",
	types.ExportFormatPNG:  "image/png",
	types.ExportFormatWebP: "image/webp",
}

// ContentTypeFor returns the MIME type for a format.
func ContentTypeFor(format types.ExportFormat) (string, error) {
	ct, ok := contentTypes[format]
	if !ok {
		return "", fmt.Errorf("unsupported export format %q", format)
	}
	return ct, nil
}

// PassthroughTranscoder copies the source bytes unchanged. It stands in for
// the real encoding pipeline so the rest of the export flow (queueing,
// storage, delivery) is exercised end to end.
//
// TODO: replace with the libvips-backed encoder once the processing service
// exposes it.
type PassthroughTranscoder struct{}

// Transcode returns the source stream as-is with the target content type.
func (PassthroughTranscoder) Transcode(_ context.Context, src io.Reader, format types.ExportFormat, _ int) (io.Reader, string, error) {
	ct, err := ContentTypeFor(format)
	if err != nil {
		return nil, "", err
	}
	return src, ct, nil
}
