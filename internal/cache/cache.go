// Package cache persists compiled bytecode.Function trees on disk, keyed by
// the SHA-256 hash of the source text they were compiled from, so a second
// run of the same script skips lexing, parsing and compiling entirely.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"

	"github.com/Rax-x/ScriptLang/internal/bytecode"
)

var magic = [4]byte{'S', 'L', 'B', 'C'}

const formatVersion byte = 1

var errBadEntry = errors.New("cache: corrupt or unrecognized entry")

// Key returns the content-addressed cache key for source: the hex-encoded
// SHA-256 hash of its exact bytes.
func Key(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Cache reads and writes compiled bytecode.Function entries under dir, one
// file per source hash. A zero-value dir disables the cache: Load always
// misses and Store is a no-op, which is how --no-cache and an empty
// REPLConfig.CacheDir are implemented by the driver.
type Cache struct {
	dir string
}

// New returns a Cache rooted at dir. dir is created lazily on the first
// Store call.
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".slbc")
}

// Load looks up the entry for source's hash. ok is false on a miss, on a
// disabled cache, or when the entry on disk is unreadable or corrupt; none
// of those are reported as errors, since a cache miss always falls back to
// the normal compile pipeline.
func (c *Cache) Load(source string) (fn *bytecode.Function, ok bool) {
	if c.dir == "" {
		return nil, false
	}

	raw, err := os.ReadFile(c.path(Key(source)))
	if err != nil {
		return nil, false
	}

	fn, err = decode(raw)
	if err != nil {
		return nil, false
	}
	return fn, true
}

// Store writes fn under source's hash, overwriting any existing entry. A
// disabled cache silently does nothing.
func (c *Cache) Store(source string, fn *bytecode.Function) error {
	if c.dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache: creating %s: %w", c.dir, err)
	}

	raw, err := encode(fn)
	if err != nil {
		return fmt.Errorf("cache: encoding entry: %w", err)
	}

	tmp := c.path(Key(source)) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("cache: writing %s: %w", tmp, err)
	}
	return os.Rename(tmp, c.path(Key(source)))
}

func encode(fn *bytecode.Function) ([]byte, error) {
	var body bytes.Buffer
	if err := writeFunction(&body, fn); err != nil {
		return nil, err
	}

	compressed, err := compress(body.Bytes())
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.Write(magic[:])
	out.WriteByte(formatVersion)
	out.Write(compressed)
	return out.Bytes(), nil
}

func decode(raw []byte) (*bytecode.Function, error) {
	if len(raw) < 5 || [4]byte(raw[:4]) != magic {
		return nil, errBadEntry
	}
	if raw[4] != formatVersion {
		return nil, errBadEntry
	}

	body, err := decompress(raw[5:])
	if err != nil {
		return nil, errBadEntry
	}

	r := bytes.NewReader(body)
	fn, err := readFunction(r)
	if err != nil {
		return nil, errBadEntry
	}
	if r.Len() != 0 {
		return nil, errBadEntry
	}
	return fn, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	return io.ReadAll(r)
}

const valueKindNil = 0
const valueKindBool = 1
const valueKindNumber = 2
const valueKindString = 3
const valueKindFunction = 4

func writeFunction(w *bytes.Buffer, fn *bytecode.Function) error {
	writeString(w, fn.Name)
	writeUint16(w, uint16(fn.Arity))
	return writeChunk(w, fn.Chunk)
}

func readFunction(r *bytes.Reader) (*bytecode.Function, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	arity, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	chunk, err := readChunk(r)
	if err != nil {
		return nil, err
	}
	return &bytecode.Function{Name: name, Arity: int(arity), Chunk: chunk}, nil
}

func writeChunk(w *bytes.Buffer, chunk *bytecode.Chunk) error {
	writeUint32(w, uint32(len(chunk.Code)))
	w.Write(chunk.Code)

	writeUint32(w, uint32(len(chunk.Lines)))
	for _, l := range chunk.Lines {
		writeUint32(w, uint32(l.Offset))
		writeUint32(w, uint32(l.Line))
	}

	writeUint16(w, uint16(len(chunk.Consts)))
	for _, v := range chunk.Consts {
		if err := writeValue(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readChunk(r *bytes.Reader) (*bytecode.Chunk, error) {
	codeLen, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, err
	}

	lineCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	lines := make([]bytecode.LineInfo, lineCount)
	for i := range lines {
		offset, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		line, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		lines[i] = bytecode.LineInfo{Offset: int(offset), Line: int(line)}
	}

	constCount, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	consts := make([]bytecode.Value, constCount)
	for i := range consts {
		v, err := readValue(r)
		if err != nil {
			return nil, err
		}
		consts[i] = v
	}

	return &bytecode.Chunk{Code: code, Lines: lines, Consts: consts}, nil
}

func writeValue(w *bytes.Buffer, v bytecode.Value) error {
	switch v.Kind {
	case bytecode.ValueNil:
		w.WriteByte(valueKindNil)
	case bytecode.ValueBool:
		w.WriteByte(valueKindBool)
		if v.Bool {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
	case bytecode.ValueNumber:
		w.WriteByte(valueKindNumber)
		var bits [8]byte
		binary.BigEndian.PutUint64(bits[:], math.Float64bits(v.Number))
		w.Write(bits[:])
	case bytecode.ValueString:
		w.WriteByte(valueKindString)
		writeString(w, v.Str)
	case bytecode.ValueFunction:
		w.WriteByte(valueKindFunction)
		return writeFunction(w, v.Fn)
	default:
		return fmt.Errorf("cache: cannot encode value kind %d", v.Kind)
	}
	return nil
}

func readValue(r *bytes.Reader) (bytecode.Value, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return bytecode.Value{}, err
	}
	switch kind {
	case valueKindNil:
		return bytecode.Nil(), nil
	case valueKindBool:
		b, err := r.ReadByte()
		if err != nil {
			return bytecode.Value{}, err
		}
		return bytecode.Bool(b != 0), nil
	case valueKindNumber:
		var bits [8]byte
		if _, err := io.ReadFull(r, bits[:]); err != nil {
			return bytecode.Value{}, err
		}
		return bytecode.Number(math.Float64frombits(binary.BigEndian.Uint64(bits[:]))), nil
	case valueKindString:
		s, err := readString(r)
		if err != nil {
			return bytecode.Value{}, err
		}
		return bytecode.String(s), nil
	case valueKindFunction:
		fn, err := readFunction(r)
		if err != nil {
			return bytecode.Value{}, err
		}
		return bytecode.FunctionValue(fn), nil
	default:
		return bytecode.Value{}, errBadEntry
	}
}

func writeString(w *bytes.Buffer, s string) {
	writeUint16(w, uint16(len(s)))
	w.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUint16(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeUint16(w *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func readUint16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func writeUint32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
