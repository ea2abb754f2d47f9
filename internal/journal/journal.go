// Package journal persists engine events to LevelDB as an audit trail.
// The journal is write-mostly: the shell reads recent collapses and grid
// tallies back for display, but nothing is ever reloaded into an engine.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/haricheung/hadron/internal/engine"
	"github.com/haricheung/hadron/internal/types"
)

// LevelDB key prefix scheme; "|" separates fields. <session> and <cycle> are
// zero-padded so keys sort chronologically.
//
//	c|<session>|<cycle>            → Entry JSON          (one per collapse)
//	g|<i>|<j>|<session>|<cycle>    → "1" | "0"           (grid index: success flag)
//	h|<unixnano>|<event id>        → HadronRecord JSON   (created / refused / reinforced)
//	b|<session>|<cycle>            → BlackHoleEvent JSON
const (
	prefixCollapse  = "c|"
	prefixGrid      = "g|"
	prefixHadron    = "h|"
	prefixBlackHole = "b|"
)

// Entry is one journaled collapse.
type Entry struct {
	EventID   string               `json:"event_id"`
	Session   string               `json:"session"`
	Timestamp time.Time            `json:"timestamp"`
	Collapse  types.CollapseResult `json:"collapse"`
}

// HadronRecord is one journaled hadron event.
type HadronRecord struct {
	EventID   string            `json:"event_id"`
	Session   string            `json:"session"`
	Timestamp time.Time         `json:"timestamp"`
	Type      types.MessageType `json:"type"`
	Event     types.HadronEvent `json:"event"`
}

// Cell is the lifetime tally of one black-hole grid cell.
type Cell struct {
	I        int `json:"i"`
	J        int `json:"j"`
	Samples  int `json:"samples"`
	Failures int `json:"failures"`
}

// FailureRate returns failures/samples, or 0 for an empty cell.
func (c Cell) FailureRate() float64 {
	if c.Samples == 0 {
		return 0
	}
	return float64(c.Failures) / float64(c.Samples)
}

// Journal is the LevelDB-backed event store. LevelDB is goroutine-safe, so
// Run may write while the shell reads.
type Journal struct {
	db      *leveldb.DB
	session string
	log     *slog.Logger
}

// Open opens (or creates) the journal at path. An empty path opens an
// in-memory journal that vanishes on Close.
//
// Expectations:
//   - Creates parent directories for a file-backed journal
//   - Returns a wrapped error when LevelDB cannot open (e.g. another process holds the lock)
//   - Assigns a fresh session key so runs never overwrite each other
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("journal: create dir: %w", err)
		}
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("journal: open %q: %w", path, err)
	}
	j := &Journal{
		db:      db,
		session: fmt.Sprintf("%020d", time.Now().UnixNano()),
		log:     logger,
	}
	logger.Info("[JOURNAL] opened", "path", path, "session", j.session)
	return j, nil
}

// Session returns this run's session key.
func (j *Journal) Session() string { return j.session }

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Run appends every message received on in until ctx is cancelled or in is
// closed. On cancellation it drains whatever is already buffered.
func (j *Journal) Run(ctx context.Context, in <-chan types.Message) {
	for {
		select {
		case <-ctx.Done():
			j.drain(in)
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			j.record(msg)
		}
	}
}

func (j *Journal) drain(in <-chan types.Message) {
	for {
		select {
		case msg, ok := <-in:
			if !ok {
				return
			}
			j.record(msg)
		default:
			return
		}
	}
}

func (j *Journal) record(msg types.Message) {
	if err := j.Append(msg); err != nil {
		j.log.Warn("[JOURNAL] append failed", "type", msg.Type, "id", msg.ID, "error", err)
	}
}

// Append writes one message synchronously. Message types the journal does not
// keep are ignored.
//
// Expectations:
//   - Collapse writes the entry and its grid index in one batch
//   - HadronCreated, HadronRefused and Reinforced write a HadronRecord
//   - BlackHoles writes the region snapshot
//   - Returns an error when the payload cannot be decoded
func (j *Journal) Append(msg types.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	switch msg.Type {
	case types.MsgCollapse:
		res, err := decode[types.CollapseResult](msg.Payload)
		if err != nil {
			return err
		}
		return j.putCollapse(msg, res)
	case types.MsgHadronCreated, types.MsgHadronRefused, types.MsgReinforced:
		ev, err := decode[types.HadronEvent](msg.Payload)
		if err != nil {
			return err
		}
		rec := HadronRecord{EventID: msg.ID, Session: j.session, Timestamp: msg.Timestamp, Type: msg.Type, Event: ev}
		return j.putJSON(fmt.Sprintf("%s%020d|%s", prefixHadron, msg.Timestamp.UnixNano(), msg.ID), rec)
	case types.MsgBlackHoles:
		ev, err := decode[types.BlackHoleEvent](msg.Payload)
		if err != nil {
			return err
		}
		return j.putJSON(fmt.Sprintf("%s%s|%020d", prefixBlackHole, j.session, ev.Cycle), ev)
	}
	return nil
}

func (j *Journal) putCollapse(msg types.Message, res types.CollapseResult) error {
	data, err := json.Marshal(Entry{EventID: msg.ID, Session: j.session, Timestamp: msg.Timestamp, Collapse: res})
	if err != nil {
		return fmt.Errorf("journal: marshal collapse: %w", err)
	}
	flag := []byte("0")
	if res.Success {
		flag = []byte("1")
	}
	ci, cj := engine.GridCell(res.Phase)

	batch := new(leveldb.Batch)
	batch.Put([]byte(fmt.Sprintf("%s%s|%020d", prefixCollapse, j.session, res.Cycle)), data)
	batch.Put([]byte(fmt.Sprintf("%s%d|%d|%s|%020d", prefixGrid, ci, cj, j.session, res.Cycle)), flag)
	if err := j.db.Write(batch, nil); err != nil {
		return fmt.Errorf("journal: write collapse %d: %w", res.Cycle, err)
	}
	return nil
}

func (j *Journal) putJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("journal: marshal %s: %w", key, err)
	}
	if err := j.db.Put([]byte(key), data, nil); err != nil {
		return fmt.Errorf("journal: put %s: %w", key, err)
	}
	return nil
}

// Recent returns up to n collapse entries, newest first, across all sessions.
func (j *Journal) Recent(n int) ([]Entry, error) {
	iter := j.db.NewIterator(util.BytesPrefix([]byte(prefixCollapse)), nil)
	defer iter.Release()

	var out []Entry
	for ok := iter.Last(); ok && len(out) < n; ok = iter.Prev() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			j.log.Warn("[JOURNAL] skipping corrupt entry", "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, e)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("journal: iterate collapses: %w", err)
	}
	return out, nil
}

// Hadrons returns up to n hadron records, newest first.
func (j *Journal) Hadrons(n int) ([]HadronRecord, error) {
	iter := j.db.NewIterator(util.BytesPrefix([]byte(prefixHadron)), nil)
	defer iter.Release()

	var out []HadronRecord
	for ok := iter.Last(); ok && len(out) < n; ok = iter.Prev() {
		var r HadronRecord
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("journal: iterate hadrons: %w", err)
	}
	return out, nil
}

// Tally sums the grid index over every session. Only cells with samples are
// returned, ordered by (i, j).
func (j *Journal) Tally() ([]Cell, error) {
	iter := j.db.NewIterator(util.BytesPrefix([]byte(prefixGrid)), nil)
	defer iter.Release()

	var out []Cell
	for iter.Next() {
		ci, cj, err := parseGridKey(string(iter.Key()))
		if err != nil {
			continue
		}
		// Keys are sorted by cell, so a new cell starts a new tally.
		if len(out) == 0 || out[len(out)-1].I != ci || out[len(out)-1].J != cj {
			out = append(out, Cell{I: ci, J: cj})
		}
		c := &out[len(out)-1]
		c.Samples++
		if string(iter.Value()) != "1" {
			c.Failures++
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("journal: iterate grid: %w", err)
	}
	return out, nil
}

func parseGridKey(key string) (int, int, error) {
	parts := strings.Split(strings.TrimPrefix(key, prefixGrid), "|")
	if len(parts) != 4 {
		return 0, 0, fmt.Errorf("malformed grid key %q", key)
	}
	i, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	jj, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return i, jj, nil
}

// LatestBlackHoles returns the most recent black-hole snapshot, or
// leveldb.ErrNotFound wrapped when none was recorded.
func (j *Journal) LatestBlackHoles() (types.BlackHoleEvent, error) {
	iter := j.db.NewIterator(util.BytesPrefix([]byte(prefixBlackHole)), nil)
	defer iter.Release()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return types.BlackHoleEvent{}, fmt.Errorf("journal: iterate black holes: %w", err)
		}
		return types.BlackHoleEvent{}, fmt.Errorf("journal: no black-hole snapshot: %w", leveldb.ErrNotFound)
	}
	var ev types.BlackHoleEvent
	if err := json.Unmarshal(iter.Value(), &ev); err != nil {
		return types.BlackHoleEvent{}, fmt.Errorf("journal: decode black holes: %w", err)
	}
	return ev, nil
}

// IsNotFound reports whether err means the journal had nothing to return.
func IsNotFound(err error) bool {
	return errors.Is(err, leveldb.ErrNotFound)
}

// decode accepts either the typed payload (in-process bus) or any value that
// round-trips through JSON into T.
func decode[T any](payload any) (T, error) {
	if v, ok := payload.(T); ok {
		return v, nil
	}
	var out T
	b, err := json.Marshal(payload)
	if err != nil {
		return out, fmt.Errorf("journal: re-encode payload: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("journal: decode %T: %w", out, err)
	}
	return out, nil
}
