package newfs

import (
	"fmt"
	"io"
	"os"
)

// ExportImage reads every byte of src, compresses it with codec, and
// writes the result to w. The caller must ensure src reflects a flushed
// image (typically by Unmount-ing the Superblock mounted over it, then
// reopening the device) before exporting.
func ExportImage(src Device, codec Codec, w io.Writer) error {
	h, err := lookupCodec(codec)
	if err != nil {
		return err
	}

	raw := make([]byte, src.Size())
	if _, err := src.ReadAt(raw, 0); err != nil {
		return fmt.Errorf("newfs: export read: %w", err)
	}

	out, err := h.compress(raw)
	if err != nil {
		return fmt.Errorf("newfs: export compress: %w", err)
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("newfs: export write: %w", err)
	}
	return nil
}

// ImportImage decompresses r with codec and writes the result over dst's
// full extent, restoring a previously exported image. dst's size must equal
// the decompressed payload's length exactly; otherwise an error is returned
// and nothing is written. dst is not truncated or resized.
func ImportImage(dst Device, codec Codec, r io.Reader) error {
	h, err := lookupCodec(codec)
	if err != nil {
		return err
	}

	compressed, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("newfs: import read: %w", err)
	}

	raw, err := h.decompress(compressed)
	if err != nil {
		return fmt.Errorf("newfs: import decompress: %w", err)
	}
	if int64(len(raw)) != dst.Size() {
		return fmt.Errorf("newfs: import size mismatch: image is %d bytes, device is %d", len(raw), dst.Size())
	}
	if _, err := dst.WriteAt(raw, 0); err != nil {
		return fmt.Errorf("newfs: import write: %w", err)
	}
	return nil
}

// ExportImageFile is a convenience wrapper that exports directly to a
// newly created file at path.
func ExportImageFile(src Device, codec Codec, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ExportImage(src, codec, f)
}

// ImportImageFile is a convenience wrapper that imports directly from a
// file at path.
func ImportImageFile(dst Device, codec Codec, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ImportImage(dst, codec, f)
}
