// Package engine implements the log-structured storage engine: the
// append-only write path, on-open log replay, seek-based reads, and the
// compactor (compact.go). This is the core of the design (spec.md §1); the
// CLI in cmd/kvs is a thin, out-of-scope adapter over it.
package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aether-kv/kvs/internal/config"
	"github.com/aether-kv/kvs/internal/index"
	"github.com/aether-kv/kvs/internal/posio"
	"github.com/aether-kv/kvs/internal/record"
)

// Error kinds the engine surfaces (spec.md §7). Get's "absent" result is
// not one of these: it is a distinguished non-error outcome.
var (
	ErrIO              = errors.New("engine: io error")
	ErrCorruption      = errors.New("engine: corruption")
	ErrKeyNotFound     = errors.New("engine: key not found")
	ErrInvalidArgument = errors.New("engine: key and value must be non-empty")
)

// Engine is a single object bound to a directory, holding the in-memory
// index and the positioned reader/writer over kvs.log (spec.md §3).
type Engine struct {
	dir string
	cfg config.Config

	logPath string

	readerFile *os.File
	writerFile *os.File
	reader     *posio.Reader
	writer     *posio.Writer

	idx       *index.Index
	staleSize int64
}

// Open binds an engine to dir: it ensures dir exists, cleans up any orphan
// compaction file left by a prior crash (spec.md §4.5 state machine), opens
// or creates kvs.log, and replays it to rebuild the index (spec.md §4.4
// open steps 1-4).
func Open(dir string, cfg config.Config) (*Engine, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating directory %s: %v", ErrIO, dir, err)
	}

	compactPath := filepath.Join(dir, cfg.CompactFileName)
	if _, err := os.Stat(compactPath); err == nil {
		slog.Warn("engine: open: found orphan compaction file from a prior crash, deleting",
			"path", compactPath)
		if err := os.Remove(compactPath); err != nil {
			return nil, fmt.Errorf("%w: removing orphan compact file: %v", ErrIO, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: statting compact file: %v", ErrIO, err)
	}

	logPath := filepath.Join(dir, cfg.LogFileName)
	readerFile, writerFile, reader, writer, err := openLogHandles(logPath)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		dir:        dir,
		cfg:        cfg,
		logPath:    logPath,
		readerFile: readerFile,
		writerFile: writerFile,
		reader:     reader,
		writer:     writer,
		idx:        index.New(),
	}

	if err := e.replay(); err != nil {
		e.Close()
		return nil, err
	}

	slog.Info("engine: opened", "dir", dir, "keys", e.idx.Len(), "stale_size", e.staleSize)
	return e, nil
}

// openLogHandles opens two independent file descriptors against logPath, one
// for the positioned reader and one for the positioned writer, mirroring
// the original source's get_log_file being called once per wrapper.
func openLogHandles(logPath string) (readerFile, writerFile *os.File, reader *posio.Reader, writer *posio.Writer, err error) {
	readerFile, err = os.OpenFile(logPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("%w: opening log for reading: %v", ErrIO, err)
	}
	writerFile, err = os.OpenFile(logPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		readerFile.Close()
		return nil, nil, nil, nil, fmt.Errorf("%w: opening log for writing: %v", ErrIO, err)
	}
	reader, err = posio.NewReader(readerFile)
	if err != nil {
		readerFile.Close()
		writerFile.Close()
		return nil, nil, nil, nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	writer, err = posio.NewWriter(writerFile)
	if err != nil {
		readerFile.Close()
		writerFile.Close()
		return nil, nil, nil, nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return readerFile, writerFile, reader, writer, nil
}

// replay streams every record in the log from offset 0, rebuilding the
// index and the stale-byte count exactly per spec.md §4.4 open step 3 and
// the Remove-accounting decision in SPEC_FULL.md §9.
func (e *Engine) replay() error {
	if _, err := e.reader.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	dec := record.NewDecoder(e.reader)
	before := int64(0)
	for {
		rec, after, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: replaying log at offset %d: %v", ErrCorruption, before, err)
		}

		switch rec.Kind {
		case record.KindSet:
			prior, existed := e.idx.Put(rec.Key, index.Entry{Offset: before, Length: after - before})
			if existed {
				e.staleSize += prior.Length
			}
		case record.KindRemove:
			prior, existed := e.idx.Delete(rec.Key)
			if existed {
				e.staleSize += prior.Length
			}
			// The Remove record's own bytes are stale too: the index
			// already reflects the deletion they describe.
			e.staleSize += after - before
		}
		before = after
	}

	if _, err := e.reader.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// Set appends a Set(key, value) record to the log and updates the index
// (spec.md §4.4 set steps 1-5).
func (e *Engine) Set(key, value string) error {
	if key == "" || value == "" {
		return ErrInvalidArgument
	}

	o := e.writer.Position()
	if _, err := record.Encode(e.writer, record.Set(key, value)); err != nil {
		return fmt.Errorf("%w: writing set record for key %q: %v", ErrIO, key, err)
	}
	if err := e.writer.Flush(); err != nil {
		return fmt.Errorf("%w: flushing after set: %v", ErrIO, err)
	}
	l := e.writer.Position() - o

	prior, existed := e.idx.Put(key, index.Entry{Offset: o, Length: l})
	if existed {
		e.staleSize += prior.Length
	}

	slog.Info("engine: set", "key", key, "offset", o, "length", l, "stale_size", e.staleSize)

	if e.staleSize > e.cfg.Threshold {
		return e.compact()
	}
	return nil
}

// Get looks up key. The bool result distinguishes "not present" from an
// actual error (spec.md §4.4 get, §7).
func (e *Engine) Get(key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrInvalidArgument
	}

	entry, ok := e.idx.Get(key)
	if !ok {
		return "", false, nil
	}

	// Flush before any read that may touch bytes just written (spec.md §5).
	if err := e.writer.Flush(); err != nil {
		return "", false, fmt.Errorf("%w: flushing before get: %v", ErrIO, err)
	}

	data, err := e.reader.ReadAt(entry.Offset, entry.Length)
	if err != nil {
		return "", false, fmt.Errorf("%w: reading record for key %q at offset %d: %v", ErrIO, key, entry.Offset, err)
	}

	dec := record.NewDecoder(bytes.NewReader(data))
	rec, _, err := dec.Next()
	if err != nil {
		return "", false, fmt.Errorf("%w: decoding record for key %q: %v", ErrCorruption, key, err)
	}
	if rec.Kind != record.KindSet {
		return "", false, fmt.Errorf("%w: index points at a non-set record for key %q", ErrCorruption, key)
	}

	slog.Debug("engine: get", "key", key, "offset", entry.Offset, "length", entry.Length)
	return rec.Value, true, nil
}

// Remove appends a Remove(key) record and drops key from the index
// (spec.md §4.4 remove steps 1-4). It fails with ErrKeyNotFound, without
// writing to the log, when key is absent.
func (e *Engine) Remove(key string) error {
	if key == "" {
		return ErrInvalidArgument
	}

	if _, ok := e.idx.Get(key); !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	o := e.writer.Position()
	if _, err := record.Encode(e.writer, record.Remove(key)); err != nil {
		return fmt.Errorf("%w: writing rm record for key %q: %v", ErrIO, key, err)
	}
	if err := e.writer.Flush(); err != nil {
		return fmt.Errorf("%w: flushing after remove: %v", ErrIO, err)
	}
	lRemove := e.writer.Position() - o

	prior, _ := e.idx.Delete(key)
	e.staleSize += prior.Length + lRemove

	slog.Info("engine: remove", "key", key, "offset", o, "stale_size", e.staleSize)

	if e.staleSize > e.cfg.Threshold {
		return e.compact()
	}
	return nil
}

// Len returns the number of live keys in the index.
func (e *Engine) Len() int {
	return e.idx.Len()
}

// StaleSize returns the current stale-byte count (exported for tests that
// verify the compaction trigger, spec.md §8).
func (e *Engine) StaleSize() int64 {
	return e.staleSize
}

// Close releases both file handles. The engine has no other teardown
// contract (spec.md §3 "Lifecycle").
func (e *Engine) Close() error {
	var errs []error
	if e.writer != nil {
		if err := e.writer.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.writerFile != nil {
		if err := e.writerFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.readerFile != nil {
		if err := e.readerFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: closing engine: %v", ErrIO, errors.Join(errs...))
	}
	return nil
}
