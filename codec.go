package newfs

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// Codec identifies a backup-image compression format. The image backup
// feature (SPEC_FULL.md §4.8) works on a Device's raw bytes, beside the
// mounted namespace; it has no on-disk counterpart of its own. Modeled on the
// teacher's SquashComp enum (comp.go), trimmed to the two optional
// codecs the pack actually carries dependencies for.
type Codec uint16

const (
	// CodecNone stores the raw superblock+bitmap+inode-table+data image
	// with no compression. Always available.
	CodecNone Codec = 0
	// CodecGZip uses the standard library's compress/gzip. Always
	// available, and the codec newfsctl export/import use when none is
	// named. (The zero Codec value is CodecNone.)
	CodecGZip Codec = 1
	CodecXZ   Codec = 2
	CodecZstd Codec = 3
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecGZip:
		return "gzip"
	case CodecXZ:
		return "xz"
	case CodecZstd:
		return "zstd"
	}
	return fmt.Sprintf("Codec(%d)", c)
}

// CompressFunc compresses a full backup image buffer.
type CompressFunc func([]byte) ([]byte, error)

// DecompressFunc decompresses a full backup image buffer.
type DecompressFunc func([]byte) ([]byte, error)

type codecHandler struct {
	compress   CompressFunc
	decompress DecompressFunc
}

func gzipCompress(buf []byte) ([]byte, error) {
	var out bytes.Buffer
	w := gzip.NewWriter(&out)
	if _, err := w.Write(buf); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func gzipDecompress(buf []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

var codecRegistry = map[Codec]codecHandler{
	CodecNone: {
		compress:   func(b []byte) ([]byte, error) { return b, nil },
		decompress: func(b []byte) ([]byte, error) { return b, nil },
	},
	CodecGZip: {
		compress:   gzipCompress,
		decompress: gzipDecompress,
	},
}

// RegisterCodec installs the compress/decompress pair for c. Called from
// the build-tag-gated codec_xz.go/codec_zstd.go init() functions, mirroring
// the teacher's RegisterCompHandler/RegisterDecompressor pattern.
func RegisterCodec(c Codec, compress CompressFunc, decompress DecompressFunc) {
	codecRegistry[c] = codecHandler{compress: compress, decompress: decompress}
}

// ErrCodecUnavailable is returned when a Codec has no registered handler,
// which happens when the backing library wasn't compiled in via its
// build tag.
var ErrCodecUnavailable = fmt.Errorf("newfs: codec not available in this build")

func lookupCodec(c Codec) (codecHandler, error) {
	h, ok := codecRegistry[c]
	if !ok {
		return codecHandler{}, ErrCodecUnavailable
	}
	return h, nil
}
