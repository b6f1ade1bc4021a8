package archive

import (
	"errors"
)

const (
	opStat     = "stat source"
	opCreate   = "create archive"
	opWalk     = "walk source"
	opOpen     = "open file"
	opWrite    = "write entry"
	opFinalize = "finalize archive"
	opClose    = "close archive"
	opRead     = "read archive"
	opExtract  = "extract entry"
)

var (
	ErrNotDirectory = errors.New("not a directory")
	ErrIllegalEntry = errors.New("illegal archive entry")
	ErrCancelled    = errors.New("archive cancelled")
)

// Entry describes a single file stored in an archive.
type Entry struct {
	Name           string
	Size           int64
	CompressedSize int64
	CRC32          uint32
}
