// Command exhashdb is a line-oriented REPL over a disk-backed extendible
// hash index: insert/get/remove int64-keyed, int64-valued mappings, plus
// a handful of diagnostics for inspecting the index and its log file.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"exhashdb/pkg/buffer"
	"exhashdb/pkg/codec"
	"exhashdb/pkg/concurrency"
	"exhashdb/pkg/config"
	"exhashdb/pkg/disk"
	"exhashdb/pkg/hash"
)

func main() {
	dbPath := flag.String("db", "data/exhashdb.db", "path to the backing database file")
	poolSize := flag.Int("pool-size", config.PoolSize, "frames per buffer pool shard")
	numInstances := flag.Int("instances", config.NumInstances, "parallel buffer pool shard count")
	logPath := flag.String("log", config.LogFileName, "path to the append-only diagnostic log")
	flag.Parse()

	logFile, err := os.OpenFile(*logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalf("exhashdb: opening log file: %v", err)
	}
	defer logFile.Close()
	logger := log.New(logFile, "", log.LstdFlags|log.Lmicroseconds)

	dms := make([]*disk.DiskManager, *numInstances)
	for i := range dms {
		path := fmt.Sprintf("%s.%d", *dbPath, i)
		dm, err := disk.New(path)
		if err != nil {
			log.Fatalf("exhashdb: opening %s: %v", path, err)
		}
		dms[i] = dm
	}
	pool := buffer.NewParallelBufferPool(*numInstances, *poolSize, dms)
	defer pool.Close()

	kc := codec.Int64Codec{}
	vc := codec.Int64Codec{}
	table := hash.NewTable[int64, int64](
		pool, kc, vc, codec.Int64Comparator, codec.XxHash64Of[int64](kc),
		func(a, b int64) bool { return a == b },
	)
	logger.Printf("started, db=%s pool_size=%d instances=%d", *dbPath, *poolSize, *numInstances)

	r, err := newRepl(table, *logPath, logger)
	if err != nil {
		log.Fatalf("exhashdb: %v", err)
	}
	r.Run(concurrency.NewTransaction().GetClientID(), config.Prompt, os.Stdin, os.Stdout)
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}
