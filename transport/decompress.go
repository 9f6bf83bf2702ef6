package transport

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/andybalholm/brotli"
)

// DecompressBody detects and decompresses gzip or Brotli response bodies
// ahead of detector evaluation, mirroring the teacher's
// cf.DecompressResponseBody: gzip is identified by its magic bytes, Brotli
// by the Content-Encoding header or, failing that, the heuristic leading
// byte range real Brotli streams fall in. Uncompressed or unrecognized
// bodies are returned unchanged.
func DecompressBody(body []byte, contentEncoding string) ([]byte, bool, error) {
	if len(body) == 0 {
		return body, false, nil
	}

	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		out, err := decompressGzip(body)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	}

	if contentEncoding == "br" {
		out, err := decompressBrotli(body)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	}

	if body[0] >= 0x80 && body[0] <= 0x8f {
		if out, err := decompressBrotli(body); err == nil {
			return out, true, nil
		}
	}

	return body, false, nil
}

func decompressGzip(body []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func decompressBrotli(body []byte) ([]byte, error) {
	reader := brotli.NewReader(bytes.NewReader(body))
	return io.ReadAll(reader)
}
