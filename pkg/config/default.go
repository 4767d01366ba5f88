// Global database config.
package config

import "github.com/ncw/directio"

// Name of the database.
const DBName = "exhashdb"

// Prompt printed by REPL.
const Prompt = DBName + "> "

// PageSize is the size, in bytes, of every page moved between the buffer
// pool and disk. Directory and bucket pages are both exactly this size.
// It is tied to directio.BlockSize since the disk manager opens its
// backing file with O_DIRECT, which requires every read/write to be
// aligned to, and a multiple of, the OS block size.
const PageSize int64 = directio.BlockSize

// MaxGlobalDepth bounds how many bits of a key's hash the directory may
// ever distinguish. It caps the directory at 1<<MaxGlobalDepth entries.
const MaxGlobalDepth = 9

// PoolSize is the default number of frames a single BufferPool holds.
const PoolSize = 32

// NumInstances is the default shard count for a ParallelBufferPool.
const NumInstances = 4

// Name of log file.
const LogFileName = "db.log"

// Return prompt if requested, else "".
func GetPrompt(flag bool) string {
	if flag {
		return Prompt
	}
	return ""
}
