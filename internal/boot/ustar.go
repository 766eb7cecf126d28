package boot

import (
	"strconv"
	"strings"

	"github.com/redstone-os/redstone/internal/extiface"
)

const blockSize = 512

// Initramfs is a read-only USTAR archive mounted directly from the bytes the bootloader loaded
// into RAM, matching fs/initramfs.rs: a flat listing of the files packed into the tarball, parsed
// once at construction.
type Initramfs struct {
	files []*tarFile
}

type tarFile struct {
	name string
	data []byte
}

// NewInitramfs parses a USTAR archive, matching the original's header layout exactly: name at
// offset 0 (100 bytes, NUL-terminated), size at offset 124 (12 bytes, octal ASCII), type flag at
// offset 156 ('5' = directory, anything else = regular file). Directories are walked over but not
// recorded, matching the original's flat-listing behavior (a TODO there notes real directory
// hierarchy is unimplemented).
func NewInitramfs(data []byte) *Initramfs {
	fs := &Initramfs{}

	offset := 0
	for offset+blockSize <= len(data) {
		header := data[offset : offset+blockSize]

		if allZero(header) {
			break
		}

		name := nullTermString(header[0:100])
		size := parseOctalSize(header[124:136])
		typeFlag := header[156]

		dataStart := offset + blockSize
		dataEnd := dataStart + int(size)
		if dataEnd > len(data) {
			break
		}

		nextHeader := (dataEnd + blockSize - 1) &^ (blockSize - 1)

		if typeFlag != '5' {
			fs.files = append(fs.files, &tarFile{name: name, data: data[dataStart:dataEnd]})
		}

		offset = nextHeader
	}

	return fs
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}

	return true
}

func nullTermString(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		return string(b[:i])
	}

	return string(b)
}

func parseOctalSize(b []byte) uint64 {
	s := strings.TrimSpace(nullTermString(b))
	if s == "" {
		return 0
	}

	n, err := strconv.ParseUint(s, 8, 64)
	if err != nil {
		return 0
	}

	return n
}

// Name implements extiface.VFSNode: the initramfs root is always "/".
func (fs *Initramfs) Name() string { return "/" }

// Kind implements extiface.VFSNode.
func (fs *Initramfs) Kind() extiface.NodeKind { return extiface.NodeDirectory }

// Size implements extiface.VFSNode; the root directory itself has no byte size.
func (fs *Initramfs) Size() uint64 { return 0 }

// List returns every file packed into the archive, matching the original's flat (non-hierarchical)
// listing.
func (fs *Initramfs) List() ([]extiface.VFSNode, error) {
	nodes := make([]extiface.VFSNode, len(fs.files))
	for i, f := range fs.files {
		nodes[i] = f
	}

	return nodes, nil
}

// Open is invalid on the root directory node itself.
func (fs *Initramfs) Open() (extiface.VFSHandle, error) {
	return nil, errNotAFile
}

var errNotAFile = &handoffError{"initramfs: cannot open a directory node"}

func (f *tarFile) Name() string             { return f.name }
func (f *tarFile) Kind() extiface.NodeKind  { return extiface.NodeFile }
func (f *tarFile) Size() uint64             { return uint64(len(f.data)) }
func (f *tarFile) List() ([]extiface.VFSNode, error) {
	return nil, errNotADirectory
}

var errNotADirectory = &handoffError{"initramfs: not a directory"}

func (f *tarFile) Open() (extiface.VFSHandle, error) {
	return &tarFileHandle{data: f.data}, nil
}

// tarFileHandle is a read-only view over one archived file's bytes.
type tarFileHandle struct {
	data []byte
}

func (h *tarFileHandle) Close() error { return nil }

func (h *tarFileHandle) ReadAt(offset uint64, buf []byte) (int, error) {
	if offset >= uint64(len(h.data)) {
		return 0, nil
	}

	n := copy(buf, h.data[offset:])

	return n, nil
}

// WriteAt always fails: the initramfs is read-only, matching the original's
// VfsError::PermissionDenied on write.
func (h *tarFileHandle) WriteAt(offset uint64, buf []byte) (int, error) {
	return 0, errReadOnly
}

var errReadOnly = &handoffError{"initramfs: read-only filesystem"}
