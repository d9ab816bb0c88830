// Package segment persists flushed full-text term entries to immutable,
// atomically-written on-disk files, and reads them back by word. The file
// format (magic bytes, dictionary, CRC32'd footer, tmp-then-rename write)
// is unchanged from the platform's original segment layout; only the
// payload — posting lists of (path, metadata) instead of (docID,
// frequency, positions) — is specific to the full-text domain.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/kvstore/fulltext/internal/substrate/memstore"
)

const (
	MagicBytes    uint32 = 0x46545844 // "FTXD"
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	PathCount  uint32
	CreatedAt  int64
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
}

type DictEntry struct {
	Word       string `json:"w"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	Cardinality int   `json:"c"`
}

type Writer struct {
	dataDir string
}

func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates a new segment file containing entries, writing
// to a .tmp file first and renaming on success.
func (w *Writer) Write(entries []memstore.TermEntry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	segmentName := fmt.Sprintf("seg_%d.ftsg", time.Now().UnixNano())
	finalPath := filepath.Join(w.dataDir, segmentName)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	header := SegmentHeader{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		TermCount: uint32(len(entries)),
		CreatedAt: time.Now().Unix(),
	}
	headerBytes := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(headerBytes[0:4], header.Magic)
	binary.LittleEndian.PutUint32(headerBytes[4:8], header.Version)
	binary.LittleEndian.PutUint32(headerBytes[8:12], header.TermCount)
	if _, err := f.Write(headerBytes); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	postingsStart, _ := f.Seek(0, 1)
	dict := make([]DictEntry, 0, len(entries))
	paths := make(map[string]struct{})
	for _, entry := range entries {
		offset, _ := f.Seek(0, 1)
		relativeOffset := offset - postingsStart
		postingsData, err := json.Marshal(entry.Postings)
		if err != nil {
			return "", fmt.Errorf("marshaling postings for word %q: %w", entry.Word, err)
		}
		if _, err := f.Write(postingsData); err != nil {
			return "", fmt.Errorf("writing postings for word %q: %w", entry.Word, err)
		}
		dict = append(dict, DictEntry{
			Word:        entry.Word,
			PostOffset:  relativeOffset,
			PostLen:     len(postingsData),
			Cardinality: len(entry.Postings),
		})
		for _, p := range entry.Postings {
			paths[p.Path] = struct{}{}
		}
	}

	postingsEnd, _ := f.Seek(0, 1)
	postingsSize := postingsEnd - postingsStart
	dictStart := postingsEnd
	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}
	dictEnd, _ := f.Seek(0, 1)
	dictSize := dictEnd - dictStart
	checksum := crc32.ChecksumIEEE(dictData)
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], checksum)
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(paths)))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(dictStart))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(dictSize))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(postingsSize))
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}
	binary.LittleEndian.PutUint32(headerBytes[12:16], uint32(len(paths)))
	binary.LittleEndian.PutUint64(headerBytes[16:24], uint64(dictStart))
	binary.LittleEndian.PutUint64(headerBytes[24:32], uint64(dictSize))
	binary.LittleEndian.PutUint64(headerBytes[32:40], uint64(postingsStart))
	binary.LittleEndian.PutUint64(headerBytes[40:48], uint64(postingsSize))
	if _, err := f.WriteAt(headerBytes, 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return segmentName, nil
}
