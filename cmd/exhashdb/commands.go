package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"exhashdb/pkg/concurrency"
	"exhashdb/pkg/hash"
	"exhashdb/pkg/repl"

	"github.com/icza/backscanner"
	"github.com/otiai10/copy"
)

// newRepl wires every CLI command to table, closing over it so command
// bodies stay plain functions of (payload, replConfig) as repl.ReplCommand
// requires.
func newRepl(table *hash.Table[int64, int64], logPath string, logger *log.Logger) (*repl.REPL, error) {
	r := repl.NewRepl()
	txn := concurrency.NewTransaction()

	r.AddCommand("insert", func(payload string, _ *repl.REPLConfig) (string, error) {
		key, value, err := parseKV(payload)
		if err != nil {
			return "", err
		}
		ok, err := table.Insert(txn, key, value)
		if err != nil {
			return "", err
		}
		logger.Printf("insert key=%d value=%d ok=%v", key, value, ok)
		return fmt.Sprintf("inserted: %v", ok), nil
	}, "insert <key> <value>: insert a mapping")

	r.AddCommand("get", func(payload string, _ *repl.REPLConfig) (string, error) {
		fields := strings.Fields(payload)
		if len(fields) != 2 {
			return "", fmt.Errorf("usage: get <key>")
		}
		key, err := parseInt64(fields[1])
		if err != nil {
			return "", err
		}
		values, found, err := table.GetValue(txn, key, nil)
		if err != nil {
			return "", err
		}
		if !found {
			return "(empty)", nil
		}
		return fmt.Sprintf("%v", values), nil
	}, "get <key>: list every value stored under key")

	r.AddCommand("remove", func(payload string, _ *repl.REPLConfig) (string, error) {
		key, value, err := parseKV(payload)
		if err != nil {
			return "", err
		}
		ok, err := table.Remove(txn, key, value)
		if err != nil {
			return "", err
		}
		logger.Printf("remove key=%d value=%d ok=%v", key, value, ok)
		return fmt.Sprintf("removed: %v", ok), nil
	}, "remove <key> <value>: remove one mapping")

	r.AddCommand("depth", func(string, *repl.REPLConfig) (string, error) {
		d, err := table.GetGlobalDepth()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("global depth: %d", d), nil
	}, "depth: print the directory's current global depth")

	r.AddCommand("size", func(string, *repl.REPLConfig) (string, error) {
		n, err := table.Size()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("size: %d", n), nil
	}, "size: count live mappings across every bucket")

	r.AddCommand("verify", func(string, *repl.REPLConfig) (string, error) {
		if err := table.VerifyIntegrity(); err != nil {
			return "", err
		}
		return "ok", nil
	}, "verify: check directory invariants")

	r.AddCommand("scan", func(string, *repl.REPLConfig) (string, error) {
		c, err := hash.NewCursor[int64, int64](table)
		if err != nil {
			return "", err
		}
		defer c.Close()
		var sb strings.Builder
		for {
			m, ok := c.Next()
			if !ok {
				break
			}
			fmt.Fprintf(&sb, "%d -> %d\n", m.Key, m.Value)
		}
		return sb.String(), nil
	}, "scan: print every live mapping")

	r.AddCommand("print_bucket", func(payload string, _ *repl.REPLConfig) (string, error) {
		fields := strings.Fields(payload)
		if len(fields) != 2 {
			return "", fmt.Errorf("usage: print_bucket <pn>")
		}
		pageID, err := parseInt64(fields[1])
		if err != nil {
			return "", err
		}
		return table.DebugString(pageID)
	}, "print_bucket <pn>: print capacity/size/taken/free for the bucket page at pn")

	r.AddCommand("log_tail", func(payload string, _ *repl.REPLConfig) (string, error) {
		fields := strings.Fields(payload)
		n := 10
		if len(fields) == 2 {
			v, err := parseInt64(fields[1])
			if err != nil {
				return "", err
			}
			n = int(v)
		}
		return tailLog(logPath, n)
	}, "log_tail [n]: print the last n lines of the diagnostic log, newest first")

	r.AddCommand("snapshot", func(payload string, _ *repl.REPLConfig) (string, error) {
		fields := strings.Fields(payload)
		if len(fields) != 2 {
			return "", fmt.Errorf("usage: snapshot <dest-dir>")
		}
		dest := fields[1]
		if err := copy.Copy(".", dest); err != nil {
			return "", err
		}
		return fmt.Sprintf("snapshotted working directory to %s", dest), nil
	}, "snapshot <dest-dir>: copy the database's working directory for backup")

	return r, nil
}

func parseKV(payload string) (key, value int64, err error) {
	fields := strings.Fields(payload)
	if len(fields) != 3 {
		return 0, 0, fmt.Errorf("usage: <trigger> <key> <value>")
	}
	key, err = parseInt64(fields[1])
	if err != nil {
		return 0, 0, err
	}
	value, err = parseInt64(fields[2])
	if err != nil {
		return 0, 0, err
	}
	return key, value, nil
}

// tailLog reads the last n lines of the file at path in reverse,
// newest-first, using backscanner to avoid loading the whole file.
func tailLog(path string, n int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	scanner := backscanner.New(f, int(info.Size()))
	var lines []string
	for len(lines) < n {
		line, _, err := scanner.Line()
		if err != nil {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}
