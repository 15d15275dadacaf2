// Package homestore persists saved home positions in a local sqlite
// database. Writes go through a single writer goroutine so the hall loop
// never blocks on disk.
package homestore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB

	ch   chan setReq
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type setReq struct {
	player string
	pos    [3]int
}

func Open(path string) (*Store, error) {
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
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS homes (
		player TEXT PRIMARY KEY,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		z INTEGER NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	);`); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db: db,
		ch: make(chan setReq, 1024),
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
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loop() {
	for req := range s.ch {
		_, _ = s.db.Exec(
			`INSERT INTO homes(player, x, y, z, updated_at) VALUES(?, ?, ?, ?, datetime('now'))
			 ON CONFLICT(player) DO UPDATE SET x=excluded.x, y=excluded.y, z=excluded.z, updated_at=excluded.updated_at;`,
			req.player, req.pos[0], req.pos[1], req.pos[2],
		)
	}
}

// Set queues a write-through update. It never blocks the caller; under
// sustained backpressure the newest update wins on the next call.
func (s *Store) Set(player string, pos [3]int) error {
	if s.closed.Load() {
		return fmt.Errorf("homestore closed")
	}
	select {
	case s.ch <- setReq{player: player, pos: pos}:
		return nil
	default:
		return fmt.Errorf("homestore queue full")
	}
}

// All loads every saved home, keyed by player name.
func (s *Store) All() (map[string][3]int, error) {
	rows, err := s.db.Query(`SELECT player, x, y, z FROM homes;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][3]int{}
	for rows.Next() {
		var player string
		var x, y, z int
		if err := rows.Scan(&player, &x, &y, &z); err != nil {
			return nil, err
		}
		out[player] = [3]int{x, y, z}
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
