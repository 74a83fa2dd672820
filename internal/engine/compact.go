package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/aether-kv/kvs/internal/index"
	"github.com/aether-kv/kvs/internal/posio"
)

// compact rewrites the log to contain exactly one Set record per live key
// and atomically replaces kvs.log with the rewrite (spec.md §4.5). The
// compact file is a disjoint resource until the swap: the current log is
// never modified during this pass (spec.md §5).
func (e *Engine) compact() error {
	compactPath := e.compactPath()

	compactFile, err := os.OpenFile(compactPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening compact file: %v", ErrIO, err)
	}
	compactWriter, err := posio.NewWriter(compactFile)
	if err != nil {
		compactFile.Close()
		os.Remove(compactPath)
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	newEntries := make(map[string]index.Entry, e.idx.Len())
	var copyErr error
	e.idx.Range(func(key string, entry index.Entry) {
		if copyErr != nil {
			return
		}
		data, err := e.reader.ReadAt(entry.Offset, entry.Length)
		if err != nil {
			copyErr = fmt.Errorf("reading live record for key %q: %w", key, err)
			return
		}
		newOffset := compactWriter.Position()
		if _, err := compactWriter.Write(data); err != nil {
			copyErr = fmt.Errorf("writing live record for key %q: %w", key, err)
			return
		}
		newEntries[key] = index.Entry{Offset: newOffset, Length: int64(len(data))}
	})
	if copyErr != nil {
		compactFile.Close()
		os.Remove(compactPath)
		return fmt.Errorf("%w: compacting: %v", ErrIO, copyErr)
	}

	if err := compactWriter.Flush(); err != nil {
		compactFile.Close()
		os.Remove(compactPath)
		return fmt.Errorf("%w: flushing compact file: %v", ErrIO, err)
	}
	if err := compactFile.Close(); err != nil {
		os.Remove(compactPath)
		return fmt.Errorf("%w: closing compact file: %v", ErrIO, err)
	}

	// Release the current log's handles before the swap so the rename is
	// the sole linearization point (spec.md §5) on every platform,
	// including ones where a rename cannot replace an open file.
	if err := e.readerFile.Close(); err != nil {
		return fmt.Errorf("%w: closing reader before swap: %v", ErrIO, err)
	}
	if err := e.writerFile.Close(); err != nil {
		return fmt.Errorf("%w: closing writer before swap: %v", ErrIO, err)
	}

	if err := atomic.ReplaceFile(compactPath, e.logPath); err != nil {
		return fmt.Errorf("%w: atomically replacing log: %v", ErrIO, err)
	}

	readerFile, writerFile, reader, writer, err := openLogHandles(e.logPath)
	if err != nil {
		return err
	}

	e.readerFile, e.writerFile = readerFile, writerFile
	e.reader, e.writer = reader, writer
	e.idx.Replace(newEntries)
	e.staleSize = 0

	slog.Info("engine: compacted", "dir", e.dir, "keys", len(newEntries))
	return nil
}

func (e *Engine) compactPath() string {
	return filepath.Join(e.dir, e.cfg.CompactFileName)
}
