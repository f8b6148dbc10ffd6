package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"towerkeep.ai/internal/emit"
	"towerkeep.ai/internal/protocol"
	"towerkeep.ai/internal/sim/catalogs"
	"towerkeep.ai/internal/sim/layout"
	"towerkeep.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index of runs. Batch rows are
// written by a background goroutine; the JSONL journal stays the source of
// truth when the queue overflows.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed      atomic.Bool
	dropBatches atomic.Uint64
}

type reqKind int

const (
	reqBatch reqKind = iota + 1
	reqElements
)

type req struct {
	kind reqKind

	batch    batchRow
	runID    string
	elements []layout.Element
}

type batchRow struct {
	RunID     string
	Seq       int
	Cells     int
	First     string
	Last      string
	Attempts  int
	ElapsedMs int64
}

type Stats struct {
	QueueDepth       int
	QueueCapacity    int
	DropBatchesTotal uint64
}

// Path is where the run index lives under dataDir.
func Path(dataDir string) string { return filepath.Join(dataDir, "index", "towerkeep.sqlite") }

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			planned INTEGER NOT NULL,
			emitted INTEGER NOT NULL,
			committed INTEGER NOT NULL,
			batches INTEGER NOT NULL,
			plan_digest TEXT NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			dry_run INTEGER NOT NULL,
			code TEXT,
			error TEXT,
			raw_json TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS batches (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			cells INTEGER NOT NULL,
			first_pos TEXT NOT NULL,
			last_pos TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS elements (
			run_id TEXT NOT NULL,
			id TEXT NOT NULL,
			kind TEXT NOT NULL,
			base INTEGER NOT NULL,
			height INTEGER NOT NULL,
			footprint TEXT NOT NULL,
			connects TEXT NOT NULL,
			PRIMARY KEY (run_id, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_elements_kind ON elements(run_id, kind);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{QueueDepth: len(s.ch), QueueCapacity: cap(s.ch), DropBatchesTotal: s.dropBatches.Load()}
}

// ForRun adapts the index into an emission journal for one run.
func (s *SQLiteIndex) ForRun(runID string) emit.Journal { return runJournal{s: s, runID: runID} }

type runJournal struct {
	s     *SQLiteIndex
	runID string
}

func (j runJournal) BatchCommitted(_ context.Context, c emit.Committed) error {
	j.s.enqueueBatch(batchRow{
		RunID:     j.runID,
		Seq:       c.Batch.Seq,
		Cells:     c.Batch.Cells,
		First:     c.Batch.First().String(),
		Last:      c.Batch.Last().String(),
		Attempts:  c.Attempts,
		ElapsedMs: c.Elapsed.Milliseconds(),
	})
	return nil
}

func (s *SQLiteIndex) enqueueBatch(r batchRow) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqBatch, batch: r}:
	default:
		s.dropBatches.Add(1)
	}
}

// RecordElements queues the planned elements of a run.
func (s *SQLiteIndex) RecordElements(runID string, elements []layout.Element) {
	if s == nil || s.closed.Load() {
		return
	}
	s.ch <- req{kind: reqElements, runID: runID, elements: elements}
}

// RecordRun stores the final report synchronously.
func (s *SQLiteIndex) RecordRun(ctx context.Context, r protocol.RunReport) error {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	dry := 0
	if r.DryRun {
		dry = 1
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO runs(run_id,seed,planned,emitted,committed,batches,plan_digest,elapsed_ms,dry_run,code,error,raw_json,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.RunID, r.Seed, r.PlannedEdits, r.EmittedEdits, r.CommittedEdits, r.Batches, r.PlanDigest, r.ElapsedMs, dry, r.Code, r.Error, string(raw),
		time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// UpsertCatalogs stores the palettes and tuning the run actually applies.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, _ := json.Marshal(cats.Palettes.ByID); len(b) > 0 {
		rows = append(rows, kv{name: "palettes", digest: cats.Palettes.Digest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertBatch, _ := s.db.Prepare(`INSERT OR REPLACE INTO batches(run_id,seq,cells,first_pos,last_pos,attempts,elapsed_ms) VALUES(?,?,?,?,?,?,?)`)
	insertElement, _ := s.db.Prepare(`INSERT OR REPLACE INTO elements(run_id,id,kind,base,height,footprint,connects) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertBatch != nil {
			_ = insertBatch.Close()
		}
		if insertElement != nil {
			_ = insertElement.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)
	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqBatch:
			b := r.batch
			if insertBatch == nil {
				continue
			}
			if _, err := tx.Stmt(insertBatch).Exec(b.RunID, b.Seq, b.Cells, b.First, b.Last, b.Attempts, b.ElapsedMs); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqElements:
			if insertElement == nil {
				continue
			}
			for _, el := range r.elements {
				connects, _ := json.Marshal(el.Connects)
				if _, err := tx.Stmt(insertElement).Exec(r.runID, el.ID, el.Kind.String(), el.Base, el.Height, el.Footprint.String(), string(connects)); err != nil {
					rollback()
					break
				}
				opCount++
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}
