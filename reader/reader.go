// Package reader implements the Data Reader (spec §4.1): lazy,
// chunk-at-a-time loading of canonical event files with a refcounted
// cache shared across the Local and Exchange processors reading the same
// asset, so a chunk touched by both sides is decompressed only once.
package reader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/klauspost/compress/zstd"

	"hftbacktest-go/domain"
)

// rowSize is the on-disk width of one canonical row: six float64 columns
// (event, exch_ts, local_ts, side, price, qty), matching the v1 dense
// layout's column order.
const rowSize = 6 * 8

// chunk is one unit of replay data: either a path to a zstd-compressed
// row file, or rows supplied directly in memory (AddData), which bypass
// the cache entirely since there is nothing to reload.
type chunk struct {
	path      string
	preloaded []domain.Event
}

// cache refcounts decoded chunks by file path so two DataReaders (one
// per processor) opened against the same files only decompress each
// chunk once between them, released once both sides have moved past it.
type cache struct {
	data map[string][]domain.Event
	ref  map[string]int
}

func newCache() *cache {
	return &cache{data: make(map[string][]domain.Event), ref: make(map[string]int)}
}

func (c *cache) acquire(path string, load func() ([]domain.Event, error)) ([]domain.Event, error) {
	if rows, ok := c.data[path]; ok {
		c.ref[path]++
		return rows, nil
	}
	rows, err := load()
	if err != nil {
		return nil, err
	}
	c.data[path] = rows
	c.ref[path] = 1
	return rows, nil
}

func (c *cache) release(path string) {
	c.ref[path]--
	if c.ref[path] <= 0 {
		delete(c.data, path)
		delete(c.ref, path)
	}
}

// NewSharedCache constructs a cache to pass to two DataReaders (local and
// exchange) opened against the same file list, so they share decoded
// chunks instead of each paying the decompression cost independently.
func NewSharedCache() *cache {
	return newCache()
}

func decodeRows(raw []byte) ([]domain.Event, error) {
	if len(raw)%rowSize != 0 {
		return nil, fmt.Errorf("reader: malformed chunk, %d bytes is not a multiple of %d: %w", len(raw), rowSize, domain.ErrInvalidData)
	}
	n := len(raw) / rowSize
	rows := make([]domain.Event, n)
	r := bytes.NewReader(raw)
	for i := 0; i < n; i++ {
		var cols [6]float64
		if err := binary.Read(r, binary.LittleEndian, &cols); err != nil {
			return nil, fmt.Errorf("reader: decoding row %d: %w", i, err)
		}
		rows[i] = domain.Event{
			Kind:    domain.EventKind(math.Round(cols[0])),
			ExchTS:  int64(cols[1]),
			LocalTS: int64(cols[2]),
			Side:    domain.Side(int8(cols[3])),
			Price:   cols[4],
			Qty:     cols[5],
		}
	}
	return rows, nil
}

func loadChunkFile(path string) ([]domain.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reader: opening %s: %w", path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("reader: zstd init for %s: %w", path, err)
	}
	defer dec.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(dec); err != nil {
		return nil, fmt.Errorf("reader: decompressing %s: %w", path, err)
	}
	return decodeRows(buf.Bytes())
}

// DataReader replays a sequence of chunks one row at a time, keeping
// exactly one chunk of lookahead loaded so PeekNext never blocks on IO
// for the common case of peeking within or just past the current chunk.
type DataReader struct {
	cache  *cache
	chunks []chunk

	started  bool
	chunkNum int
	curPath  string
	curRows  []domain.Event
	curPos   int

	nextPath string
	nextRows []domain.Event
}

// New constructs an empty DataReader sharing the given cache. Pass the
// same *cache (from NewSharedCache) to the Local and Exchange
// DataReaders opened against one asset's files.
func New(c *cache) *DataReader {
	if c == nil {
		c = newCache()
	}
	return &DataReader{cache: c, curPos: -1}
}

// AddFile appends a zstd-compressed chunk file to the replay sequence.
func (r *DataReader) AddFile(path string) {
	r.chunks = append(r.chunks, chunk{path: path})
}

// AddData appends an in-memory chunk of rows directly, for tests and for
// synthetic data that was never written to disk.
func (r *DataReader) AddData(rows []domain.Event) {
	r.chunks = append(r.chunks, chunk{preloaded: rows})
}

func (r *DataReader) loadChunk(idx int) (path string, rows []domain.Event, err error) {
	if idx >= len(r.chunks) {
		return "", nil, nil
	}
	c := r.chunks[idx]
	if c.path == "" {
		return "", c.preloaded, nil
	}
	rows, err = r.cache.acquire(c.path, func() ([]domain.Event, error) { return loadChunkFile(c.path) })
	return c.path, rows, err
}

func (r *DataReader) ensureStarted() error {
	if r.started {
		return nil
	}
	r.started = true

	path, rows, err := r.loadChunk(0)
	if err != nil {
		return err
	}
	r.curPath, r.curRows = path, rows

	npath, nrows, err := r.loadChunk(1)
	if err != nil {
		return err
	}
	r.nextPath, r.nextRows = npath, nrows
	return nil
}

// Next advances to and returns the next row in replay order, rolling
// over to the next chunk (releasing the current one from the cache) when
// the current chunk is exhausted. Returns ok=false once every chunk has
// been consumed.
func (r *DataReader) Next() (domain.Event, bool) {
	if err := r.ensureStarted(); err != nil {
		return domain.Event{}, false
	}

	r.curPos++
	if r.curPos >= len(r.curRows) {
		if r.curPath != "" {
			r.cache.release(r.curPath)
		}
		r.curPath, r.curRows = r.nextPath, r.nextRows
		r.chunkNum++
		path, rows, err := r.loadChunk(r.chunkNum + 1)
		if err != nil {
			return domain.Event{}, false
		}
		r.nextPath, r.nextRows = path, rows
		r.curPos = 0
	}

	if len(r.curRows) == 0 || r.curPos >= len(r.curRows) {
		return domain.Event{}, false
	}
	return r.curRows[r.curPos], true
}

// PeekNext returns the row Next would return without consuming it.
func (r *DataReader) PeekNext() (domain.Event, bool) {
	if err := r.ensureStarted(); err != nil {
		return domain.Event{}, false
	}
	if r.curPos+1 < len(r.curRows) {
		return r.curRows[r.curPos+1], true
	}
	if len(r.nextRows) == 0 {
		return domain.Event{}, false
	}
	return r.nextRows[0], true
}

// Reset rewinds to the start of the chunk sequence for a fresh run,
// releasing any chunk this reader currently holds from the cache.
func (r *DataReader) Reset() {
	if r.curPath != "" {
		r.cache.release(r.curPath)
	}
	if r.nextPath != "" {
		r.cache.release(r.nextPath)
	}
	r.started = false
	r.chunkNum = 0
	r.curPath, r.curRows, r.curPos = "", nil, -1
	r.nextPath, r.nextRows = "", nil
}
