// This file synthesizes ProDOS directory blocks from a host
// directory.  A directory opened via the MLI becomes a flat byte
// image of 512-byte blocks, indexed by the file mark, exactly as a
// ProDOS program walking a real volume would see it.

package mli

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/prodos8/prodosulator/metadata"
	"github.com/prodos8/prodosulator/pathname"
)

// Directory layout constants.
const (
	dirBlockSize       = 512
	dirEntryLength     = 39
	dirEntriesPerBlock = 13

	storageSeedling  = uint8(0x01)
	storageSapling   = uint8(0x02)
	storageTree      = uint8(0x03)
	storageSubdir    = uint8(0x0D)
	storageSubdirHdr = uint8(0x0E)
	storageVolumeHdr = uint8(0x0F)
)

// dirEntry is one 39-byte directory entry plus the name used for
// sorting.
type dirEntry struct {
	name string
	data [dirEntryLength]uint8
}

func putLE16(buf []uint8, v uint16) {
	buf[0] = uint8(v & 0xFF)
	buf[1] = uint8(v >> 8)
}

func putLE24(buf []uint8, v uint32) {
	buf[0] = uint8(v & 0xFF)
	buf[1] = uint8((v >> 8) & 0xFF)
	buf[2] = uint8((v >> 16) & 0xFF)
}

// fileEntry builds the 39-byte entry for one directory member.
func fileEntry(name string, meta metadata.Metadata, storageType uint8, eof uint32, blocksUsed uint16) dirEntry {
	var e dirEntry
	e.name = name

	nameLen := len(name)
	if nameLen > 15 {
		nameLen = 15
	}

	e.data[0] = storageType<<4 | uint8(nameLen)
	copy(e.data[1:16], name[:nameLen])

	e.data[0x10] = meta.FileType
	putLE16(e.data[0x11:], 0) // key pointer: nothing to point at
	putLE16(e.data[0x13:], blocksUsed)
	putLE24(e.data[0x15:], eof)
	putLE16(e.data[0x18:], meta.CreateDate)
	putLE16(e.data[0x1A:], meta.CreateTime)
	e.data[0x1C] = 0 // version
	e.data[0x1D] = 0 // min_version
	e.data[0x1E] = meta.Access
	putLE16(e.data[0x1F:], meta.AuxType)
	putLE16(e.data[0x21:], meta.ModDate)
	putLE16(e.data[0x23:], meta.ModTime)
	putLE16(e.data[0x25:], 0) // header pointer

	return e
}

// headerEntry builds the 39-byte directory header which occupies the
// first entry slot of the key block.
func headerEntry(name string, fileCount uint16, isVolume bool, created time.Time, access uint8) [dirEntryLength]uint8 {
	var e [dirEntryLength]uint8

	storageType := storageSubdirHdr
	if isVolume {
		storageType = storageVolumeHdr
	}

	nameLen := len(name)
	if nameLen > 15 {
		nameLen = 15
	}

	e[0] = storageType<<4 | uint8(nameLen)
	copy(e[1:16], name[:nameLen])

	putLE16(e[0x18:], metadata.EncodeDate(created))
	putLE16(e[0x1A:], metadata.EncodeTime(created))
	e[0x1C] = 0 // version
	e[0x1D] = 0 // min_version
	e[0x1E] = access
	e[0x1F] = dirEntryLength
	e[0x20] = dirEntriesPerBlock
	putLE16(e[0x21:], fileCount)
	putLE16(e[0x23:], 0) // bitmap pointer
	putLE16(e[0x25:], 0) // total blocks / parent pointer

	return e
}

// storageTypeFor classifies a file by size the way ProDOS allocates
// it: one data block is a seedling, up to 256 a sapling, beyond that
// a tree.
func storageTypeFor(blocksUsed uint16) uint8 {
	switch {
	case blocksUsed <= 1:
		return storageSeedling
	case blocksUsed <= 256:
		return storageSapling
	default:
		return storageTree
	}
}

// synthesizeDirectoryBlocks builds the ProDOS directory image for a
// host directory.  Entries are sorted by name; members whose names
// cannot be ProDOS filenames are omitted.
func synthesizeDirectoryBlocks(hostPath string, dirName string, isVolume bool) []uint8 {
	var entries []dirEntry

	created := time.Now()
	if st, err := os.Stat(hostPath); err == nil {
		created = st.ModTime()
	}

	members, _ := os.ReadDir(hostPath)
	for _, member := range members {
		name := strings.ToUpper(member.Name())
		if !pathname.IsValidComponent(name) {
			continue
		}

		st, err := os.Stat(hostPath + "/" + member.Name())
		if err != nil {
			continue
		}

		memberPath := hostPath + "/" + member.Name()
		meta := metadata.Load(memberPath, st.IsDir())

		var entry dirEntry
		if st.IsDir() {
			meta.FileType = 0x0F
			entry = fileEntry(name, meta, storageSubdir, dirBlockSize, 1)
		} else {
			eof := uint32(st.Size())
			if eof > maxMark {
				eof = maxMark
			}
			blocksUsed := uint16((eof + 511) / 512)
			storageType := storageTypeFor(blocksUsed)
			if blocksUsed == 0 {
				blocksUsed = 1
			}

			// A bare host file with no sidecar reads best as BIN.
			if meta.FileType == 0x00 {
				meta.FileType = 0x06
			}

			entry = fileEntry(name, meta, storageType, eof, blocksUsed)
		}

		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].name < entries[j].name
	})

	dirAccess := metadata.Load(hostPath, true).Access

	return buildDirectoryBlocks(dirName, entries, isVolume, created, dirAccess)
}

// buildDirectoryBlocks lays the header and entries out into 512-byte
// blocks: the key block holds the header plus twelve entries,
// subsequent blocks hold thirteen each.
func buildDirectoryBlocks(dirName string, entries []dirEntry, isVolume bool, created time.Time, access uint8) []uint8 {
	blockCount := 1
	if len(entries) > 12 {
		blockCount += (len(entries) - 12 + 12) / 13
	}

	image := make([]uint8, blockCount*dirBlockSize)

	entryIdx := 0
	for blockIdx := 0; blockIdx < blockCount; blockIdx++ {
		block := image[blockIdx*dirBlockSize : (blockIdx+1)*dirBlockSize]

		// Previous and next block pointers.
		if blockIdx > 0 {
			putLE16(block[0:], uint16(blockIdx-1))
		}
		if blockIdx < blockCount-1 {
			putLE16(block[2:], uint16(blockIdx+1))
		}

		offset := 4
		slots := dirEntriesPerBlock

		if blockIdx == 0 {
			header := headerEntry(dirName, uint16(len(entries)), isVolume, created, access)
			copy(block[offset:], header[:])
			offset += dirEntryLength
			slots--
		}

		for s := 0; s < slots && entryIdx < len(entries); s++ {
			copy(block[offset:], entries[entryIdx].data[:])
			offset += dirEntryLength
			entryIdx++
		}
	}

	return image
}
