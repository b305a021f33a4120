// Package pixel provides the flat pixel representation used by the shuffler
// and the conversions between it and decoded images.
//
// A [Sequence] is a row-major list of [Pixel] values: the pixel at raster
// position (x, y) of a width-wide image lives at index y*width + x. The
// shuffler treats pixels as opaque tokens and never inspects their channels.
//
// # Codecs
//
// [Decode] understands PNG, JPEG and GIF from the standard library plus BMP,
// TIFF and WebP from golang.org/x/image. [Encode] writes every format except
// WebP, for which no pure-Go encoder exists.
//
//	img, format, err := pixel.Decode(r)
//	seq, w, h := pixel.FromImage(img)
//	// ... shuffle seq ...
//	out, err := pixel.ToImage(seq, w, h)
//	err = pixel.Encode(wr, out, format, pixel.DefaultQuality)
package pixel
