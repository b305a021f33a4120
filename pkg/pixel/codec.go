package pixel

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/pixelshuffle/pkg/errors"
)

// Format names as reported by image.Decode.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatGIF  = "gif"
	FormatBMP  = "bmp"
	FormatTIFF = "tiff"
	FormatWebP = "webp"
)

// DefaultQuality is the JPEG quality used when none is given.
const DefaultQuality = 90

// EncodableFormats lists the formats Encode can write.
var EncodableFormats = map[string]bool{
	FormatPNG:  true,
	FormatJPEG: true,
	FormatGIF:  true,
	FormatBMP:  true,
	FormatTIFF: true,
}

var extensions = map[string]string{
	".png":  FormatPNG,
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".gif":  FormatGIF,
	".bmp":  FormatBMP,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".webp": FormatWebP,
}

// Decode reads an image in any registered format.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidImage, err, "decode image")
	}
	return img, format, nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (image.Image, string, error) {
	return Decode(bytes.NewReader(data))
}

// Encode writes img in the given format. quality only applies to JPEG and
// falls back to DefaultQuality when out of range.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	var err error
	switch NormalizeFormat(format) {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatJPEG:
		if quality < 1 || quality > 100 {
			quality = DefaultQuality
		}
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case FormatGIF:
		err = gif.Encode(w, img, nil)
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case FormatWebP:
		return errors.New(errors.ErrCodeUnsupported, "webp encoding is not supported")
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unknown output format %q", format)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode %s", format)
	}
	return nil
}

// NormalizeFormat maps aliases such as "jpg" and "tif" onto canonical names.
func NormalizeFormat(format string) string {
	f := strings.ToLower(strings.TrimPrefix(format, "."))
	if canonical, ok := extensions["."+f]; ok {
		return canonical
	}
	return f
}

// FormatFromPath returns the format implied by path's extension, or "" if
// the extension is not recognized.
func FormatFromPath(path string) string {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// Extension returns the preferred file extension for format, including the dot.
func Extension(format string) string {
	switch NormalizeFormat(format) {
	case FormatJPEG:
		return ".jpg"
	case "":
		return ""
	default:
		return "." + NormalizeFormat(format)
	}
}
