package data

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/diskvfs/internal/errs"
	"github.com/hupe1980/diskvfs/internal/inode"
)

const (
	// EntrySize is the size of one persisted directory entry.
	EntrySize = 32

	// NameMax is the longest allowed entry name in bytes.
	NameMax = EntrySize - 4
)

// Entry is one (name, inode) pair of a directory.
type Entry struct {
	Name  string
	Inode uint32
}

// ValidName reports whether name can be stored in a directory entry.
func ValidName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", errs.ErrInvalidPath)
	case len(name) > NameMax:
		return fmt.Errorf("%w: name %q longer than %d bytes", errs.ErrInvalidPath, name, NameMax)
	case strings.ContainsAny(name, "/\x00"):
		return fmt.Errorf("%w: name %q contains '/' or NUL", errs.ErrInvalidPath, name)
	}
	return nil
}

func encodeEntry(e Entry) []byte {
	buf := make([]byte, EntrySize)
	copy(buf[:NameMax], e.Name)
	binary.LittleEndian.PutUint32(buf[NameMax:], e.Inode)
	return buf
}

func decodeEntry(buf []byte) Entry {
	name := buf[:NameMax]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return Entry{Name: string(name), Inode: binary.LittleEndian.Uint32(buf[NameMax:])}
}

func requireDir(dir *inode.Inode) error {
	if !dir.IsDir() {
		return fmt.Errorf("%w: inode %d", errs.ErrNotADirectory, dir.Index)
	}
	return nil
}

// ListEntries returns the entries of dir in storage order.
func (l *Layer) ListEntries(dir *inode.Inode) ([]Entry, error) {
	if err := requireDir(dir); err != nil {
		return nil, err
	}

	raw, err := l.ReadAt(dir, 0, int(dir.Size))
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw)/EntrySize)
	for off := 0; off+EntrySize <= len(raw); off += EntrySize {
		entries = append(entries, decodeEntry(raw[off:off+EntrySize]))
	}
	return entries, nil
}

// EntryAt returns the entry at position pos of dir.
// It returns errs.ErrEndOfDirectory when pos is past the last entry.
func (l *Layer) EntryAt(dir *inode.Inode, pos int) (Entry, error) {
	if err := requireDir(dir); err != nil {
		return Entry{}, err
	}
	off := uint64(pos) * EntrySize
	if pos < 0 || off+EntrySize > dir.Size {
		return Entry{}, errs.ErrEndOfDirectory
	}

	raw, err := l.ReadAt(dir, off, EntrySize)
	if err != nil {
		return Entry{}, err
	}
	return decodeEntry(raw), nil
}

// Lookup finds name in dir and returns the entry and its position.
func (l *Layer) Lookup(dir *inode.Inode, name string) (Entry, int, error) {
	entries, err := l.ListEntries(dir)
	if err != nil {
		return Entry{}, -1, err
	}
	for i, e := range entries {
		if e.Name == name {
			return e, i, nil
		}
	}
	return Entry{}, -1, fmt.Errorf("%w: %q", errs.ErrNotFound, name)
}

// AddEntry appends (name, child) to dir.
func (l *Layer) AddEntry(dir *inode.Inode, name string, child uint32) error {
	if err := ValidName(name); err != nil {
		return err
	}
	if _, _, err := l.Lookup(dir, name); err == nil {
		return fmt.Errorf("%w: %q", errs.ErrAlreadyExists, name)
	} else if !errors.Is(err, errs.ErrNotFound) {
		return err
	}

	n, err := l.WriteAt(dir, dir.Size, encodeEntry(Entry{Name: name, Inode: child}))
	if err != nil {
		return err
	}
	if n != EntrySize {
		return fmt.Errorf("data: short directory entry write (%d bytes)", n)
	}
	return nil
}

// RemoveEntry deletes name from dir, shifting later entries down so the
// storage order of the remaining entries is preserved.
func (l *Layer) RemoveEntry(dir *inode.Inode, name string) (Entry, error) {
	e, pos, err := l.Lookup(dir, name)
	if err != nil {
		return Entry{}, err
	}

	from := uint64(pos+1) * EntrySize
	if from < dir.Size {
		tail, err := l.ReadAt(dir, from, int(dir.Size-from))
		if err != nil {
			return Entry{}, err
		}
		if _, err := l.WriteAt(dir, from-EntrySize, tail); err != nil {
			return Entry{}, err
		}
	}

	if err := l.Truncate(dir, dir.Size-EntrySize); err != nil {
		return Entry{}, err
	}
	return e, nil
}
