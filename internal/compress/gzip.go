package compress

import (
	"compress/gzip"
	"io"
)

func gzipReader(src io.Reader) (io.ReadCloser, error) {
	gr, err := gzip.NewReader(src)
	if err != nil {
		return nil, err
	}
	return gr, nil
}

func gzipWriter(dst io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriterLevel(dst, gzip.BestSpeed)
}
