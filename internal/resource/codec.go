// Package resource implements the immutable model resources held by the model
// store: trie indexes, static cost arrays, the bigram hash table, CRF, HMM and
// maxent models, the IDF map and template line lists. Each kind is built once
// by a Load function from a file path; load failures are classified as I/O or
// corruption errors.
package resource

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
)

// Binary resource files start with a fixed header followed by a payload of
// Count fixed-size little-endian records:
//
//	0  magic   uint32
//	4  version uint32
//	8  kind    uint32
//	12 recSize uint32
//	16 count   uint64
//	24 crc32   uint32 (IEEE, payload only)
//	28 reserved
const (
	MagicBytes    uint32 = 0x4D4C504E
	FormatVersion uint32 = 1
	HeaderSize    int    = 32
)

// Kind identifies the record layout of a binary resource file.
type Kind uint32

const (
	KindFloatArray Kind = iota + 1
	KindInt64Float
	KindInt32Float
)

func (k Kind) recordSize() int {
	switch k {
	case KindFloatArray:
		return 4
	case KindInt64Float:
		return 12
	case KindInt32Float:
		return 8
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case KindFloatArray:
		return "float-array"
	case KindInt64Float:
		return "int64-float"
	case KindInt32Float:
		return "int32-float"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// header describes a binary resource file.
type header struct {
	Magic    uint32
	Version  uint32
	Kind     Kind
	RecSize  uint32
	Count    uint64
	Checksum uint32
}

// writeRecords atomically creates path holding count records of the given
// kind. It writes to a .tmp file first and renames on success.
func writeRecords(path string, kind Kind, count int, payload []byte) error {
	if len(payload) != count*kind.recordSize() {
		return fmt.Errorf("payload size %d does not match %d %s records", len(payload), count, kind)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating resource directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp resource file: %w", err)
	}
	defer f.Close()

	headerBytes := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(headerBytes[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(headerBytes[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(headerBytes[8:12], uint32(kind))
	binary.LittleEndian.PutUint32(headerBytes[12:16], uint32(kind.recordSize()))
	binary.LittleEndian.PutUint64(headerBytes[16:24], uint64(count))
	binary.LittleEndian.PutUint32(headerBytes[24:28], crc32.ChecksumIEEE(payload))

	if _, err := f.Write(headerBytes); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		return fmt.Errorf("writing %s payload: %w", kind, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing resource file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming resource file: %w", err)
	}
	return nil
}

// readRecords loads a binary resource file and returns its payload after
// validating magic, version, kind, size and checksum.
func readRecords(path string, want Kind) (header, []byte, error) {
	op := "loading " + filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return header{}, nil, perrors.IO(op, err)
	}
	if len(data) < HeaderSize {
		return header{}, nil, perrors.Corruption(op, "file is %d bytes, shorter than header", len(data))
	}
	h := header{
		Magic:    binary.LittleEndian.Uint32(data[0:4]),
		Version:  binary.LittleEndian.Uint32(data[4:8]),
		Kind:     Kind(binary.LittleEndian.Uint32(data[8:12])),
		RecSize:  binary.LittleEndian.Uint32(data[12:16]),
		Count:    binary.LittleEndian.Uint64(data[16:24]),
		Checksum: binary.LittleEndian.Uint32(data[24:28]),
	}
	switch {
	case h.Magic != MagicBytes:
		return h, nil, perrors.Corruption(op, "bad magic bytes %x", h.Magic)
	case h.Version != FormatVersion:
		return h, nil, perrors.Corruption(op, "unsupported format version %d", h.Version)
	case h.Kind != want:
		return h, nil, perrors.Corruption(op, "file holds %s records, want %s", h.Kind, want)
	case int(h.RecSize) != want.recordSize():
		return h, nil, perrors.Corruption(op, "record size %d, want %d", h.RecSize, want.recordSize())
	}
	payload := data[HeaderSize:]
	if uint64(len(payload)) != h.Count*uint64(h.RecSize) {
		return h, nil, perrors.Corruption(op, "payload is %d bytes, header declares %d records", len(payload), h.Count)
	}
	if sum := crc32.ChecksumIEEE(payload); sum != h.Checksum {
		return h, nil, perrors.Corruption(op, "checksum mismatch: %x != %x", sum, h.Checksum)
	}
	return h, payload, nil
}
