package hub

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charleschow/arcade-client/internal/telemetry"

	_ "modernc.org/sqlite"
)

const (
	journalEvictBatch     = 100
	journalVacuumInterval = 50
	journalQueue          = 512
)

// Frame is one journaled server event.
type Frame struct {
	ID       int64
	Hub      string
	Target   string
	Received time.Time
	Raw      []byte
}

// Journal keeps every raw server event in a FIFO SQLite table capped at
// maxBytes, oldest rows evicted first. A nil *Journal is a no-op.
type Journal struct {
	db       *sql.DB
	maxBytes int64

	queue     chan Frame
	wg        sync.WaitGroup
	closeOnce sync.Once

	// owned by the writer goroutine
	cachedSize   int64
	evictCounter int
}

func OpenJournal(path string, maxBytes int64) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	var avMode int
	if err := db.QueryRow(`PRAGMA auto_vacuum`).Scan(&avMode); err != nil {
		db.Close()
		return nil, fmt.Errorf("read auto_vacuum: %w", err)
	}
	if avMode != 2 { // 2 = INCREMENTAL
		if _, err := db.Exec(`PRAGMA auto_vacuum = INCREMENTAL`); err != nil {
			db.Close()
			return nil, fmt.Errorf("set auto_vacuum: %w", err)
		}
		if _, err := db.Exec(`VACUUM`); err != nil {
			telemetry.Warnf("journal: VACUUM to enable auto_vacuum failed: %v", err)
		}
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS hub_frames (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			hub       TEXT    NOT NULL,
			target    TEXT    NOT NULL,
			received  TEXT    NOT NULL,
			byte_size INTEGER NOT NULL,
			raw       BLOB    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hub_frames_hub ON hub_frames(hub)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init journal schema: %w", err)
		}
	}

	var size int64
	if err := db.QueryRow(`SELECT COALESCE(SUM(byte_size), 0) FROM hub_frames`).Scan(&size); err != nil {
		db.Close()
		return nil, fmt.Errorf("read journal size: %w", err)
	}
	telemetry.Debugf("journal: opened %s bytes=%d", path, size)

	j := &Journal{
		db:         db,
		maxBytes:   maxBytes,
		queue:      make(chan Frame, journalQueue),
		cachedSize: size,
	}
	j.wg.Add(1)
	go j.writer()
	return j, nil
}

// Insert queues a copy of raw for persistence. It never blocks the read
// loop; frames are dropped with a warning when the queue is full.
func (j *Journal) Insert(hub, target string, raw []byte) {
	if j == nil {
		return
	}
	f := Frame{Hub: hub, Target: target, Received: time.Now().UTC(), Raw: append([]byte(nil), raw...)}
	defer func() {
		// Insert after Close races with the closed queue.
		if recover() != nil {
			telemetry.Debugf("journal: insert after close dropped")
		}
	}()
	select {
	case j.queue <- f:
	default:
		telemetry.Warnf("journal: queue full, dropping %s frame", target)
	}
}

func (j *Journal) writer() {
	defer j.wg.Done()
	for f := range j.queue {
		size := int64(len(f.Raw))
		_, err := j.db.Exec(
			`INSERT INTO hub_frames (hub, target, received, byte_size, raw) VALUES (?, ?, ?, ?, ?)`,
			f.Hub, f.Target, f.Received.Format(time.RFC3339Nano), size, f.Raw,
		)
		if err != nil {
			telemetry.Warnf("journal: insert failed: %v", err)
			continue
		}
		j.cachedSize += size
		if j.maxBytes > 0 && j.cachedSize > j.maxBytes {
			j.evict()
		}
	}
}

func (j *Journal) evict() {
	for j.cachedSize > j.maxBytes {
		var freed int64
		err := j.db.QueryRow(
			`WITH deleted AS (
				DELETE FROM hub_frames
				WHERE id IN (SELECT id FROM hub_frames ORDER BY id ASC LIMIT ?)
				RETURNING byte_size
			)
			SELECT COALESCE(SUM(byte_size), 0) FROM deleted`,
			journalEvictBatch,
		).Scan(&freed)
		if err != nil {
			telemetry.Warnf("journal: eviction query failed: %v", err)
			return
		}
		if freed == 0 {
			return
		}
		j.cachedSize -= freed
		j.evictCounter++
		if j.evictCounter%journalVacuumInterval == 0 {
			if _, err := j.db.Exec(`PRAGMA incremental_vacuum`); err != nil {
				telemetry.Warnf("journal: incremental_vacuum failed: %v", err)
			}
		}
	}
}

// Recent returns up to limit frames for hub, newest first. An empty hub
// matches every hub.
func (j *Journal) Recent(ctx context.Context, hub string, limit int) ([]Frame, error) {
	if j == nil {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, hub, target, received, raw FROM hub_frames
		 WHERE ? = '' OR hub = ?
		 ORDER BY id DESC LIMIT ?`,
		hub, hub, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Frame
	for rows.Next() {
		var f Frame
		var received string
		if err := rows.Scan(&f.ID, &f.Hub, &f.Target, &received, &f.Raw); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		f.Received, _ = time.Parse(time.RFC3339Nano, received)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Close drains queued frames and closes the database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	j.closeOnce.Do(func() {
		close(j.queue)
		j.wg.Wait()
	})
	return j.db.Close()
}
