package digitizeapi

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"digitizer/digitize"
)

// Multipart field names of the upload endpoint.
const (
	FieldImage          = "image"
	FieldTargetLanguage = "targetLanguage"
)

// DetectContentType returns the MIME type of an image by decoding its
// header. Unrecognized data falls back to net/http sniffing, which yields
// application/octet-stream for arbitrary bytes.
func DetectContentType(data []byte) string {
	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return "image/" + format
	}
	return http.DetectContentType(data)
}

func buildUploadForm(file digitize.File, targetLanguage string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := filepath.Base(file.Name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "image"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldImage, escapeQuotes(name)))
	header.Set("Content-Type", DetectContentType(file.Data))

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("digitizeapi: failed to create image part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("digitizeapi: failed to write image part: %w", err)
	}
	if err := w.WriteField(FieldTargetLanguage, targetLanguage); err != nil {
		return nil, "", fmt.Errorf("digitizeapi: failed to write %s: %w", FieldTargetLanguage, err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("digitizeapi: failed to close form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
