// an sqlite3 backed tag store
package tags

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SqliteStore struct {
	db        *sql.DB
	tableName string
}

type SqliteStoreOpt func(*SqliteStore)

func WithTableName(name string) SqliteStoreOpt {
	return func(s *SqliteStore) {
		s.tableName = name
	}
}

func NewSQLiteStore(dbPath string, opts ...SqliteStoreOpt) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one connection, so ":memory:" databases see a single schema
	db.SetMaxOpenConns(1)

	store := &SqliteStore{
		db:        db,
		tableName: "tags",
	}

	for _, o := range opts {
		o(store)
	}

	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// creates a table and sets up the schema, migrations if any can go here
func (s *SqliteStore) init() error {
	createTable :=
		`create table if not exists ` + s.tableName + `(
			position integer not null,
			id text primary key,
			name text not null,
			color text not null
		);

		create table if not exists ` + s.tableName + `_meta (
			id integer primary key check (id = 1),
			saved_at text not null
		);`
	_, err := s.db.Exec(createTable)
	return err
}

// Load returns the saved list in its saved order. A store that has never
// been saved reports an error so the caller falls back to defaults, while
// an explicitly saved empty list loads as empty.
func (s *SqliteStore) Load(ctx context.Context) ([]Tag, error) {
	var savedAt string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`select saved_at from %s_meta where id = 1;`, s.tableName)).Scan(&savedAt)
	if err != nil {
		return nil, fmt.Errorf("no saved tags: %w", err)
	}

	query := fmt.Sprintf(`
		select id, name, color from %s order by position asc;
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []Tag{}
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tags, nil
}

func (s *SqliteStore) Save(ctx context.Context, tags []Tag) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`delete from %s;`, s.tableName)); err != nil {
		return err
	}

	insert := fmt.Sprintf(`
		insert into %s (position, id, name, color) values (?, ?, ?, ?);
	`, s.tableName)
	for i, t := range tags {
		if _, err := tx.ExecContext(ctx, insert, i, t.ID, t.Name, t.Color); err != nil {
			return fmt.Errorf("saving tag %s: %w", t.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		insert into %s_meta (id, saved_at)
		values (1, strftime('%%Y-%%m-%%dT%%H:%%M:%%SZ', 'now'))
		on conflict(id) do update set saved_at = excluded.saved_at;
	`, s.tableName))
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SqliteStore) Stop() {
	s.db.Close()
}
