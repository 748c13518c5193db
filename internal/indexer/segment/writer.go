// Package segment reads and writes index checkpoint files. A checkpoint
// holds the complete inverted index and the document length table so that
// a restart can skip re-tokenizing the corpus.
//
// Layout: 64-byte header, JSON postings per term, JSON dictionary, JSON
// document lengths, 32-byte footer. All integers are little endian.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 3
	HeaderSize    int    = 64
	FooterSize    int    = 32
	FileExt              = ".spdx"
	filePrefix           = "snapshot_"
)

// SegmentHeader is the 64-byte header written at the start of every file.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
	DocsOffset int64
	DocsSize   int64
}

// SegmentFooter trails the file and carries the section checksums.
type SegmentFooter struct {
	DictChecksum  uint32
	DocsChecksum  uint32
	PostChecksum  uint32
	// Analyzer is the tokenizer signature the postings were built with.
	Analyzer      uint32
	MaxDocID      uint64
	CreatedAtNano int64
}

// DictEntry maps a term to its postings offset, length, and document
// frequency in the file.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

type docLength struct {
	ID     uint64 `json:"i"`
	Length int    `json:"n"`
}

// Writer serialises index state into new checkpoint files.
type Writer struct {
	dataDir  string
	analyzer uint32
}

// NewWriter returns a Writer that stamps every checkpoint with analyzer,
// the signature of the tokenizer that built the index.
func NewWriter(dataDir string, analyzer uint32) *Writer {
	return &Writer{dataDir: dataDir, analyzer: analyzer}
}

// Write atomically creates a checkpoint file from entries (sorted by term)
// and the document length table. It writes to a .tmp file first and
// renames on success. The returned path is absolute within dataDir.
func (w *Writer) Write(entries []index.TermEntry, docLens map[uint64]int) (string, error) {
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Term >= entries[i].Term {
			return "", fmt.Errorf("entries not sorted by term at %q", entries[i].Term)
		}
	}
	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating checkpoint directory: %w", err)
	}
	now := time.Now()
	stamp := now.UnixNano()
	finalPath := filepath.Join(w.dataDir, fmt.Sprintf("%s%020d%s", filePrefix, stamp, FileExt))
	for {
		if _, err := os.Stat(finalPath); os.IsNotExist(err) {
			break
		}
		stamp++
		finalPath = filepath.Join(w.dataDir, fmt.Sprintf("%s%020d%s", filePrefix, stamp, FileExt))
	}
	tmpPath := finalPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp checkpoint file: %w", err)
	}
	defer f.Close()
	defer os.Remove(tmpPath)

	header := SegmentHeader{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		TermCount: uint32(len(entries)),
		DocCount:  uint32(len(docLens)),
	}
	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	header.PostOffset = int64(HeaderSize)
	var postCRC uint32
	var written int64
	dict := make([]DictEntry, 0, len(entries))
	for _, entry := range entries {
		postingsData, err := json.Marshal(entry.Postings)
		if err != nil {
			return "", fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		if _, err := f.Write(postingsData); err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		postCRC = crc32.Update(postCRC, crc32.IEEETable, postingsData)
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: written,
			PostLen:    len(postingsData),
			DocFreq:    len(entry.Postings),
		})
		written += int64(len(postingsData))
	}
	header.PostSize = written

	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	header.DictOffset = header.PostOffset + header.PostSize
	header.DictSize = int64(len(dictData))
	if _, err := f.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}

	docs := make([]docLength, 0, len(docLens))
	var maxDocID uint64
	for id, n := range docLens {
		docs = append(docs, docLength{ID: id, Length: n})
		if id > maxDocID {
			maxDocID = id
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	docsData, err := json.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("marshaling document lengths: %w", err)
	}
	header.DocsOffset = header.DictOffset + header.DictSize
	header.DocsSize = int64(len(docsData))
	if _, err := f.Write(docsData); err != nil {
		return "", fmt.Errorf("writing document lengths: %w", err)
	}

	footer := SegmentFooter{
		DictChecksum:  crc32.ChecksumIEEE(dictData),
		DocsChecksum:  crc32.ChecksumIEEE(docsData),
		PostChecksum:  postCRC,
		Analyzer:      w.analyzer,
		MaxDocID:      maxDocID,
		CreatedAtNano: now.UnixNano(),
	}
	if _, err := f.Write(encodeFooter(footer)); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}
	if _, err := f.WriteAt(encodeHeader(header), 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing checkpoint file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing checkpoint file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming checkpoint file: %w", err)
	}
	return finalPath, nil
}

// List returns checkpoint file paths in dataDir, oldest first.
func List(dataDir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dataDir, filePrefix+"*"+FileExt))
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Prune removes all but the newest keep checkpoint files.
func Prune(dataDir string, keep int) (int, error) {
	paths, err := List(dataDir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(paths)-removed > keep {
		if err := os.Remove(paths[removed]); err != nil {
			return removed, fmt.Errorf("removing checkpoint %s: %w", paths[removed], err)
		}
		removed++
	}
	return removed, nil
}

func encodeHeader(h SegmentHeader) []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.DocsOffset))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.DocsSize))
	return b
}

func decodeHeader(b []byte) SegmentHeader {
	return SegmentHeader{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		TermCount:  binary.LittleEndian.Uint32(b[8:12]),
		DocCount:   binary.LittleEndian.Uint32(b[12:16]),
		DictOffset: int64(binary.LittleEndian.Uint64(b[16:24])),
		DictSize:   int64(binary.LittleEndian.Uint64(b[24:32])),
		PostOffset: int64(binary.LittleEndian.Uint64(b[32:40])),
		PostSize:   int64(binary.LittleEndian.Uint64(b[40:48])),
		DocsOffset: int64(binary.LittleEndian.Uint64(b[48:56])),
		DocsSize:   int64(binary.LittleEndian.Uint64(b[56:64])),
	}
}

func encodeFooter(f SegmentFooter) []byte {
	b := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(b[0:4], f.DictChecksum)
	binary.LittleEndian.PutUint32(b[4:8], f.DocsChecksum)
	binary.LittleEndian.PutUint32(b[8:12], f.PostChecksum)
	binary.LittleEndian.PutUint32(b[12:16], f.Analyzer)
	binary.LittleEndian.PutUint64(b[16:24], f.MaxDocID)
	binary.LittleEndian.PutUint64(b[24:32], uint64(f.CreatedAtNano))
	return b
}

func decodeFooter(b []byte) SegmentFooter {
	return SegmentFooter{
		DictChecksum:  binary.LittleEndian.Uint32(b[0:4]),
		DocsChecksum:  binary.LittleEndian.Uint32(b[4:8]),
		PostChecksum:  binary.LittleEndian.Uint32(b[8:12]),
		Analyzer:      binary.LittleEndian.Uint32(b[12:16]),
		MaxDocID:      binary.LittleEndian.Uint64(b[16:24]),
		CreatedAtNano: int64(binary.LittleEndian.Uint64(b[24:32])),
	}
}

func readSection(f io.ReaderAt, offset, size int64) ([]byte, error) {
	buf := make([]byte, size)
	if size == 0 {
		return buf, nil
	}
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	return buf, nil
}
