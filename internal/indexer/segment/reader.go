package segment

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

var ErrCorrupt = errors.New("corrupt checkpoint file")

type Reader struct {
	file    *os.File
	header  SegmentHeader
	footer  SegmentFooter
	dict    []DictEntry
	docLens map[uint64]int
}

// OpenReader opens a checkpoint and verifies every section checksum.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint file: %w", err)
	}
	r, err := open(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func open(f *os.File) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat checkpoint file: %w", err)
	}
	if info.Size() < int64(HeaderSize+FooterSize) {
		return nil, fmt.Errorf("%w: file too small", ErrCorrupt)
	}
	headerBytes, err := readSection(f, 0, int64(HeaderSize))
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad magic bytes %x", ErrCorrupt, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, header.Version)
	}
	if header.DocsOffset+header.DocsSize+int64(FooterSize) != info.Size() {
		return nil, fmt.Errorf("%w: section sizes do not match file size", ErrCorrupt)
	}
	footerBytes, err := readSection(f, info.Size()-int64(FooterSize), int64(FooterSize))
	if err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	footer := decodeFooter(footerBytes)

	dictBytes, err := readSection(f, header.DictOffset, header.DictSize)
	if err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if crc32.ChecksumIEEE(dictBytes) != footer.DictChecksum {
		return nil, fmt.Errorf("%w: dictionary checksum mismatch", ErrCorrupt)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	if len(dict) != int(header.TermCount) {
		return nil, fmt.Errorf("%w: term count mismatch", ErrCorrupt)
	}

	docsBytes, err := readSection(f, header.DocsOffset, header.DocsSize)
	if err != nil {
		return nil, fmt.Errorf("reading document lengths: %w", err)
	}
	if crc32.ChecksumIEEE(docsBytes) != footer.DocsChecksum {
		return nil, fmt.Errorf("%w: document table checksum mismatch", ErrCorrupt)
	}
	var docs []docLength
	if err := json.Unmarshal(docsBytes, &docs); err != nil {
		return nil, fmt.Errorf("parsing document lengths: %w", err)
	}
	docLens := make(map[uint64]int, len(docs))
	for _, d := range docs {
		docLens[d.ID] = d.Length
	}
	if len(docLens) != int(header.DocCount) {
		return nil, fmt.Errorf("%w: document count mismatch", ErrCorrupt)
	}

	postBytes, err := readSection(f, header.PostOffset, header.PostSize)
	if err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	if crc32.ChecksumIEEE(postBytes) != footer.PostChecksum {
		return nil, fmt.Errorf("%w: postings checksum mismatch", ErrCorrupt)
	}

	return &Reader{
		file:    f,
		header:  header,
		footer:  footer,
		dict:    dict,
		docLens: docLens,
	}, nil
}

// ReadAll returns every term entry in dictionary order.
func (r *Reader) ReadAll() ([]index.TermEntry, error) {
	entries := make([]index.TermEntry, 0, len(r.dict))
	for _, d := range r.dict {
		postings, err := r.read(d)
		if err != nil {
			return nil, err
		}
		if len(postings) != d.DocFreq {
			return nil, fmt.Errorf("%w: document frequency mismatch for %q", ErrCorrupt, d.Term)
		}
		entries = append(entries, index.TermEntry{Term: d.Term, Postings: postings})
	}
	return entries, nil
}

func (r *Reader) read(entry DictEntry) (index.PostingList, error) {
	postingsBytes, err := readSection(r.file, r.header.PostOffset+entry.PostOffset, int64(entry.PostLen))
	if err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings for %q: %w", entry.Term, err)
	}
	return postings, nil
}

// DocLengths returns a copy of the document length table.
func (r *Reader) DocLengths() map[uint64]int {
	out := make(map[uint64]int, len(r.docLens))
	for id, n := range r.docLens {
		out[id] = n
	}
	return out
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

// Analyzer is the tokenizer signature recorded by the writer.
func (r *Reader) Analyzer() uint32 {
	return r.footer.Analyzer
}

func (r *Reader) MaxDocID() uint64 {
	return r.footer.MaxDocID
}

func (r *Reader) CreatedAt() time.Time {
	return time.Unix(0, r.footer.CreatedAtNano)
}

func (r *Reader) Close() error {
	return r.file.Close()
}
