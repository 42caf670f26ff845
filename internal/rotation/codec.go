package rotation

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// codec compresses a stream and names the archive extension it produces.
type codec struct {
	name string
	ext  string
	wrap func(io.Writer) (io.WriteCloser, error)
}

var codecs = map[string]codec{
	"zstd": {
		name: "zstd",
		ext:  ".zst",
		wrap: func(w io.Writer) (io.WriteCloser, error) { return zstd.NewWriter(w) },
	},
	"xz": {
		name: "xz",
		ext:  ".xz",
		wrap: func(w io.Writer) (io.WriteCloser, error) { return xz.NewWriter(w) },
	},
	"gzip": {
		name: "gzip",
		ext:  ".gz",
		wrap: func(w io.Writer) (io.WriteCloser, error) { return gzip.NewWriter(w), nil },
	},
}

func codecSupported(name string) bool {
	_, ok := codecs[name]
	return ok
}

// pickCodec returns the first supported codec from the preference list.
func pickCodec(prefs []string) (codec, error) {
	for _, name := range prefs {
		if c, ok := codecs[name]; ok {
			return c, nil
		}
	}
	return codec{}, fmt.Errorf("%w: no supported codec in %v", ErrInvalidPolicy, prefs)
}

// compressFile writes path's contents to path+ext via the codec, then removes
// the original. The archive is written to a temporary name and renamed into
// place so a crash mid-compression never leaves a truncated archive at the
// canonical path.
func (c codec) compressFile(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("compress %s: %w", path, err)
	}
	defer src.Close()

	dstPath := path + c.ext
	tmpPath := dstPath + ".tmp"
	dst, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("compress %s: %w", path, err)
	}

	cw, err := c.wrap(dst)
	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("compress %s: %w", path, err)
	}

	if _, err := io.Copy(cw, src); err != nil {
		cw.Close()
		dst.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("compress %s: %w", path, err)
	}
	if err := cw.Close(); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("compress %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("compress %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, dstPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("compress %s: %w", path, err)
	}

	// The uncompressed original is redundant once the archive is in place.
	if err := os.Remove(path); err != nil {
		return dstPath, fmt.Errorf("compress %s: remove original: %w", path, err)
	}
	return dstPath, nil
}
