package archive

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// The sequential-block format is a stream of 512-byte header blocks,
// each followed by the entry payload padded out to the next block
// boundary. Header layout:
//
//	bytes [0,100)   entry name, NUL terminated/padded
//	bytes [124,136) payload size, ASCII octal, NUL/space padded
//	byte  156       type flag: '5' directory, '0' or NUL regular file
//
// A run of 512 zero bytes, or a header with an empty name, ends the
// stream.
const blockSize = 512

const (
	typeFile    = '0'
	typeFileAlt = 0
	typeDir     = '5'
)

type blockHeader struct {
	name     string
	size     int64
	typeFlag byte
	badSize  bool
}

var zeroBlock = make([]byte, blockSize)

func parseBlockHeader(b []byte) *blockHeader {
	var h blockHeader

	name := b[:100]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	h.name = strings.TrimSpace(string(name))
	h.typeFlag = b[156]

	raw := strings.Trim(string(b[124:136]), "\x00 ")

	size, err := strconv.ParseInt(raw, 8, 64)
	if err != nil || size < 0 {
		h.badSize = true
		return &h
	}

	h.size = size

	return &h
}

func padding(size int64) int64 {
	return (blockSize - size%blockSize) % blockSize
}

// walkBlocks drives the parser over r, materializing entries under
// dest. With a filter, only matching regular files are written (still
// consuming every payload to stay aligned); created file paths are
// appended to out.
func (e *Extractor) walkBlocks(r io.Reader, dest string, filter func(string) bool, out *[]string) error {
	buf := make([]byte, blockSize)

	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			// end of stream between entries is a clean stop
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}

			return &ExtractionError{Path: dest, Reason: "reading header block", Err: err}
		}

		if bytes.Equal(buf, zeroBlock) {
			return nil
		}

		hdr := parseBlockHeader(buf)

		if hdr.name == "" {
			return nil
		}

		if hdr.badSize {
			// skip just this header and rescan at the next boundary
			e.L().Warn("skipping entry with malformed size field", "entry", hdr.name)
			continue
		}

		tgt, ok := safeJoin(dest, hdr.name)
		if !ok {
			return &ExtractionError{Path: hdr.name, Reason: "entry escapes destination"}
		}

		switch hdr.typeFlag {
		case typeDir:
			if err := os.MkdirAll(tgt, 0755); err != nil {
				return &ExtractionError{Path: tgt, Reason: "creating directory", Err: err}
			}

		case typeFile, typeFileAlt:
			write := filter == nil || filter(hdr.name)

			if err := e.writeEntry(r, tgt, hdr, write); err != nil {
				return err
			}

			if write && out != nil {
				*out = append(*out, filepath.FromSlash(hdr.name))
			}

		default:
			// unsupported entry type, seek past its payload
			if err := discard(r, hdr.size+padding(hdr.size)); err != nil {
				return &ExtractionError{Path: hdr.name, Reason: "skipping entry", Err: err}
			}

			continue
		}

		if hdr.typeFlag == typeDir {
			continue
		}

		if err := discard(r, padding(hdr.size)); err != nil {
			return &ExtractionError{Path: hdr.name, Reason: "skipping padding", Err: err}
		}
	}
}

// writeEntry copies exactly hdr.size payload bytes to tgt, or discards
// them when the filter rejected the entry. A stream that ends short of
// the declared size keeps the partial file rather than failing the
// whole extraction; an already-applied update is better than none.
func (e *Extractor) writeEntry(r io.Reader, tgt string, hdr *blockHeader, write bool) error {
	if !write {
		if err := discard(r, hdr.size); err != nil {
			return &ExtractionError{Path: hdr.name, Reason: "skipping payload", Err: err}
		}

		return nil
	}

	if err := os.MkdirAll(filepath.Dir(tgt), 0755); err != nil {
		return &ExtractionError{Path: tgt, Reason: "creating parent directory", Err: err}
	}

	f, err := os.Create(tgt)
	if err != nil {
		return &ExtractionError{Path: tgt, Reason: "creating file", Err: err}
	}

	n, err := io.CopyN(f, r, hdr.size)

	if cerr := f.Close(); cerr != nil && err == nil {
		return &ExtractionError{Path: tgt, Reason: "closing file", Err: cerr}
	}

	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			e.L().Warn("archive stream ended early, keeping partial file",
				"entry", hdr.name, "want", hdr.size, "got", n)
			return nil
		}

		return &ExtractionError{Path: tgt, Reason: "copying payload", Err: err}
	}

	return nil
}

func discard(r io.Reader, n int64) error {
	if n == 0 {
		return nil
	}

	_, err := io.CopyN(ioutil.Discard, r, n)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil
	}

	return err
}

// safeJoin joins name under dest and rejects entries that would climb
// out of it.
func safeJoin(dest, name string) (string, bool) {
	tgt := filepath.Join(dest, filepath.FromSlash(name))

	rel, err := filepath.Rel(dest, tgt)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}

	return tgt, true
}
