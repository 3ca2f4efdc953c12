package diskvfs

import (
	"time"

	"github.com/hupe1980/diskvfs/internal/inode"
)

// FileType is the kind of an object.
type FileType = inode.Type

const (
	TypeFile      = inode.TypeFile
	TypeDirectory = inode.TypeDirectory
)

// Stat describes a file or directory.
type Stat struct {
	Inode    uint32
	Name     string
	Type     FileType
	Size     uint64
	Blocks   int // data blocks, excluding the indirect block
	Created  time.Time
	Modified time.Time
}

// IsDir reports whether the object is a directory.
func (s Stat) IsDir() bool { return s.Type == TypeDirectory }

func newStat(in *inode.Inode, name string) Stat {
	return Stat{
		Inode:    in.Index,
		Name:     name,
		Type:     in.Type,
		Size:     in.Size,
		Blocks:   len(in.Blocks),
		Created:  in.Created,
		Modified: in.Modified,
	}
}
