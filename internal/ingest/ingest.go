// Package ingest unpacks uploaded bill archives and enumerates the bill files
// inside them.
package ingest

// BillFile is one accepted bill file found under an extraction root.
type BillFile struct {
	Path    string // absolute path on disk
	RelPath string // slash separated, relative to the extraction root
	Folder  string // RelPath's directory, "" at the root
	Name    string
	Format  string // constants.PDF | constants.IMAGE
	HashHex string
	Size    int64
}

// DirStats summarizes a directory walk.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Ignored      uint32
	Deduplicated uint32
	Failed       uint32
}

// ExtractStats summarizes an archive extraction.
type ExtractStats struct {
	Entries   int
	Extracted int
	Skipped   int
	Bytes     int64
}
