package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrArchiveInvalid covers every structural rejection of an uploaded
// archive: oversize input, not a zip, zero or multiple transcripts, or a
// declared decompressed size that trips the inflation guard.
var ErrArchiveInvalid = errors.New("invalid archive")

// Archive is the unpacked upload: exactly one chat transcript plus
// zero-or-more contact card blobs in zip entry order.
type Archive struct {
	TranscriptName string
	Transcript     []byte
	Contacts       []ContactBlob
}

type ContactBlob struct {
	Name string
	Data []byte
}

type Options struct {
	// MaxBytes is the archive size ceiling, enforced before any entry is
	// inflated. Zero disables the check.
	MaxBytes int64
	// MaxInflationRatio rejects archives whose declared decompressed size
	// exceeds ratio × compressed size.
	MaxInflationRatio int64
}

// Load validates and unpacks raw archive bytes. It never touches the
// filesystem; all entries are materialised in memory.
func Load(data []byte, opts Options) (*Archive, error) {
	if opts.MaxBytes > 0 && int64(len(data)) > opts.MaxBytes {
		return nil, fmt.Errorf("%w: archive size %d exceeds limit %d", ErrArchiveInvalid, len(data), opts.MaxBytes)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip archive: %v", ErrArchiveInvalid, err)
	}

	// Zip-bomb guard: trust nothing, but the declared sizes are enough to
	// reject before inflating anything.
	if opts.MaxInflationRatio > 0 {
		var declared uint64
		for _, f := range zr.File {
			declared += f.UncompressedSize64
		}
		if declared > uint64(opts.MaxInflationRatio)*uint64(len(data)) {
			return nil, fmt.Errorf("%w: declared size %d exceeds inflation ratio %d", ErrArchiveInvalid, declared, opts.MaxInflationRatio)
		}
	}

	var transcripts []*zip.File
	var contacts []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || ignored(f.Name) {
			continue
		}
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".txt":
			transcripts = append(transcripts, f)
		case ".vcf":
			contacts = append(contacts, f)
		}
	}

	if len(transcripts) == 0 {
		return nil, fmt.Errorf("%w: no chat transcript found", ErrArchiveInvalid)
	}
	if len(transcripts) > 1 {
		return nil, fmt.Errorf("%w: %d chat transcripts found, expected exactly one", ErrArchiveInvalid, len(transcripts))
	}

	// Cap actual reads at the declared-size budget so a lying header
	// cannot inflate past the guard.
	budget := int64(len(data))
	if opts.MaxInflationRatio > 0 {
		budget *= opts.MaxInflationRatio
	} else {
		budget = 1 << 31
	}

	out := &Archive{TranscriptName: path.Base(transcripts[0].Name)}
	out.Transcript, err = readEntry(transcripts[0], &budget)
	if err != nil {
		return nil, fmt.Errorf("read transcript %s: %w", transcripts[0].Name, err)
	}

	for _, f := range contacts {
		blob, err := readEntry(f, &budget)
		if err != nil {
			return nil, fmt.Errorf("read contact %s: %w", f.Name, err)
		}
		out.Contacts = append(out.Contacts, ContactBlob{Name: path.Base(f.Name), Data: blob})
	}

	return out, nil
}

func readEntry(f *zip.File, budget *int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, *budget+1))
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}
	if int64(len(data)) > *budget {
		return nil, fmt.Errorf("%w: entry %s exceeds decompression budget", ErrArchiveInvalid, f.Name)
	}
	*budget -= int64(len(data))
	return data, nil
}

// ignored filters zip metadata entries and hidden files out of
// classification.
func ignored(name string) bool {
	if strings.HasPrefix(name, "__MACOSX/") {
		return true
	}
	base := path.Base(name)
	return strings.HasPrefix(base, ".")
}
