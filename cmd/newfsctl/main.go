// Command newfsctl inspects and manipulates newfs images without mounting
// them through FUSE, in the teacher's os.Args-switch CLI style
// (cmd/sqfs/main.go).
package main

import (
	"fmt"
	"os"

	"github.com/aerfio/newfs"
)

const usage = `newfsctl - newfs image tool

Usage:
  newfsctl mkfs <image> [io_unit_size]          Create a fresh image file
  newfsctl ls <image> [<path>]                  List a directory's children
  newfsctl cat <image> <file>                   Print a file's contents
  newfsctl stat <image> <path>                  Show an inode's attributes
  newfsctl export <image> <out> [none|gzip|xz|zstd]   Export an image (default gzip)
  newfsctl import <image> <in> [none|gzip|xz|zstd]    Overwrite an image from an export
  newfsctl help                                 Show this help message
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "mkfs":
		if len(os.Args) < 3 {
			fmt.Println("Error: missing image path")
			fmt.Print(usage)
			os.Exit(1)
		}
		ioUnit := 512
		if len(os.Args) > 3 {
			fmt.Sscanf(os.Args[3], "%d", &ioUnit)
		}
		err = mkfs(os.Args[2], ioUnit)

	case "ls":
		if len(os.Args) < 3 {
			fmt.Println("Error: missing image path")
			fmt.Print(usage)
			os.Exit(1)
		}
		path := "/"
		if len(os.Args) > 3 {
			path = os.Args[3]
		}
		err = ls(os.Args[2], path)

	case "cat":
		if len(os.Args) < 4 {
			fmt.Println("Error: missing image path or target file")
			fmt.Print(usage)
			os.Exit(1)
		}
		err = cat(os.Args[2], os.Args[3])

	case "stat":
		if len(os.Args) < 4 {
			fmt.Println("Error: missing image path or target path")
			fmt.Print(usage)
			os.Exit(1)
		}
		err = statPath(os.Args[2], os.Args[3])

	case "export":
		if len(os.Args) < 4 {
			fmt.Println("Error: missing image path or output path")
			fmt.Print(usage)
			os.Exit(1)
		}
		codec := "gzip"
		if len(os.Args) > 4 {
			codec = os.Args[4]
		}
		err = export(os.Args[2], os.Args[3], codec)

	case "import":
		if len(os.Args) < 4 {
			fmt.Println("Error: missing image path or input path")
			fmt.Print(usage)
			os.Exit(1)
		}
		codec := "gzip"
		if len(os.Args) > 4 {
			codec = os.Args[4]
		}
		err = importImg(os.Args[2], os.Args[3], codec)

	case "help":
		fmt.Print(usage)
		return

	default:
		fmt.Printf("Error: unknown command %q\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func codecByName(name string) newfs.Codec {
	switch name {
	case "none":
		return newfs.CodecNone
	case "xz":
		return newfs.CodecXZ
	case "zstd":
		return newfs.CodecZstd
	default:
		return newfs.CodecGZip
	}
}

func mkfs(path string, ioUnit int) error {
	dev, err := newfs.Format(path, ioUnit)
	if err != nil {
		return fmt.Errorf("creating image: %w", err)
	}
	defer dev.Close()

	fsys, err := newfs.MountFS(dev)
	if err != nil {
		return fmt.Errorf("initializing root: %w", err)
	}
	return fsys.Unmount()
}

func openImage(path string) (*newfs.FileSystem, error) {
	dev, err := newfs.OpenFileDevice(path, 0)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	fsys, err := newfs.MountFS(dev)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("mounting image: %w", err)
	}
	return fsys, nil
}

func ls(imgPath, path string) error {
	fsys, err := openImage(imgPath)
	if err != nil {
		return err
	}
	defer fsys.Unmount()

	for i := 0; ; i++ {
		entry, err := fsys.ReadDir(path, i)
		if err != nil {
			return fmt.Errorf("reading %q: %w", path, err)
		}
		if entry == nil {
			return nil
		}
		typeChar := "-"
		if entry.Type.IsDir() {
			typeChar = "d"
		} else if entry.Type.IsSym() {
			typeChar = "l"
		}
		fmt.Printf("%s %8d %s\n", typeChar, entry.Ino, entry.Name)
	}
}

func cat(imgPath, path string) error {
	fsys, err := openImage(imgPath)
	if err != nil {
		return err
	}
	defer fsys.Unmount()

	st, err := fsys.GetAttr(path)
	if err != nil {
		return fmt.Errorf("stat %q: %w", path, err)
	}

	buf, err := fsys.Read(path, 0, int(st.Size))
	if err != nil {
		return fmt.Errorf("reading %q: %w", path, err)
	}
	_, err = os.Stdout.Write(buf)
	return err
}

func statPath(imgPath, path string) error {
	fsys, err := openImage(imgPath)
	if err != nil {
		return err
	}
	defer fsys.Unmount()

	st, err := fsys.GetAttr(path)
	if err != nil {
		return fmt.Errorf("stat %q: %w", path, err)
	}

	fmt.Printf("Type:   %s\n", st.Type)
	fmt.Printf("Size:   %d bytes\n", st.Size)
	fmt.Printf("Blocks: %d\n", st.Blocks)
	fmt.Printf("Links:  %d\n", st.Links)
	return nil
}

func export(imgPath, outPath, codec string) error {
	fsys, err := openImage(imgPath)
	if err != nil {
		return err
	}
	if err := fsys.Unmount(); err != nil {
		return fmt.Errorf("flushing before export: %w", err)
	}

	// Re-open the image so ExportImage sees the fully flushed image.
	dev, err := newfs.OpenFileDevice(imgPath, 0)
	if err != nil {
		return fmt.Errorf("reopening image: %w", err)
	}
	defer dev.Close()

	return newfs.ExportImageFile(dev, codecByName(codec), outPath)
}

func importImg(imgPath, inPath, codec string) error {
	dev, err := newfs.OpenFileDevice(imgPath, 0)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	defer dev.Close()
	return newfs.ImportImageFile(dev, codecByName(codec), inPath)
}
