package virtualfs

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/logger"
)

func vfsDebugLog(format string, args ...interface{}) {
	logger.Debug(logger.AreaFileSystem, format, args...)
}

var (
	ErrNotFound     = errors.New("file not found")
	ErrInvalidPath  = errors.New("invalid path")
	ErrQuotaReached = errors.New("file quota reached")
	ErrTooLarge     = errors.New("file too large")
)

// VFS is the per-session virtual filesystem BASIC file statements operate
// on. Every session sees its own flat namespace; files persist in a sqlite
// database so a reconnecting session finds its programs again.
type VFS struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open creates or opens the backing database and ensures the schema.
func Open(dbPath string) (*VFS, error) {
	if dbPath == "" {
		dbPath = configuration.GetString("FileSystem", "database_path", "retrobasic.db")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open filesystem database: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS files (
    session_id TEXT NOT NULL,
    path       TEXT NOT NULL,
    content    BLOB NOT NULL,
    mod_time   INTEGER NOT NULL,
    PRIMARY KEY (session_id, path)
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create filesystem schema: %w", err)
	}
	vfsDebugLog("filesystem database opened at %s", dbPath)
	return &VFS{db: db}, nil
}

// Close releases the database handle.
func (v *VFS) Close() error {
	return v.db.Close()
}

// normalizePath folds a user-supplied path into the canonical stored form:
// uppercase, no directories, a default .BAS extension for bare names.
func normalizePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || strings.ContainsAny(path, "/\\:") {
		return "", ErrInvalidPath
	}
	path = strings.ToUpper(path)
	if !strings.Contains(path, ".") {
		path += ".BAS"
	}
	if len(path) > 64 {
		return "", ErrInvalidPath
	}
	return path, nil
}

// ReadFile returns a file's content for a session.
func (v *VFS) ReadFile(path, sessionID string) (string, error) {
	canon, err := normalizePath(path)
	if err != nil {
		return "", err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	var content []byte
	row := v.db.QueryRow(`SELECT content FROM files WHERE session_id = ? AND path = ?`, sessionID, canon)
	if err := row.Scan(&content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read %s: %w", canon, err)
	}
	return string(content), nil
}

// WriteFile stores a file for a session, enforcing the configured size and
// count limits.
func (v *VFS) WriteFile(path, content, sessionID string) error {
	canon, err := normalizePath(path)
	if err != nil {
		return err
	}
	maxKB := configuration.GetInt("FileSystem", "max_file_size_kb", 256)
	if len(content) > maxKB*1024 {
		return ErrTooLarge
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	maxFiles := configuration.GetInt("FileSystem", "max_files_per_session", 100)
	var count int
	var exists int
	if err := v.db.QueryRow(`SELECT COUNT(*) FROM files WHERE session_id = ?`, sessionID).Scan(&count); err != nil {
		return fmt.Errorf("count files: %w", err)
	}
	if err := v.db.QueryRow(`SELECT COUNT(*) FROM files WHERE session_id = ? AND path = ?`, sessionID, canon).Scan(&exists); err != nil {
		return fmt.Errorf("check file: %w", err)
	}
	if exists == 0 && count >= maxFiles {
		return ErrQuotaReached
	}

	_, err = v.db.Exec(
		`INSERT INTO files (session_id, path, content, mod_time) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id, path) DO UPDATE SET content = excluded.content, mod_time = excluded.mod_time`,
		sessionID, canon, []byte(content), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("write %s: %w", canon, err)
	}
	vfsDebugLog("wrote %s (%d bytes) for session %s", canon, len(content), sessionID)
	return nil
}

// Exists reports whether a session has a file at the path.
func (v *VFS) Exists(path, sessionID string) bool {
	canon, err := normalizePath(path)
	if err != nil {
		return false
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	var n int
	if err := v.db.QueryRow(`SELECT COUNT(*) FROM files WHERE session_id = ? AND path = ?`, sessionID, canon).Scan(&n); err != nil {
		return false
	}
	return n > 0
}

// Delete removes a session's file.
func (v *VFS) Delete(path, sessionID string) error {
	canon, err := normalizePath(path)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	res, err := v.db.Exec(`DELETE FROM files WHERE session_id = ? AND path = ?`, sessionID, canon)
	if err != nil {
		return fmt.Errorf("delete %s: %w", canon, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// FileInfo is one directory listing entry.
type FileInfo struct {
	Name    string
	Size    int
	ModTime time.Time
}

// List returns a session's files sorted by name.
func (v *VFS) List(sessionID string) ([]FileInfo, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rows, err := v.db.Query(
		`SELECT path, LENGTH(content), mod_time FROM files WHERE session_id = ? ORDER BY path`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var infos []FileInfo
	for rows.Next() {
		var info FileInfo
		var modUnix int64
		if err := rows.Scan(&info.Name, &info.Size, &modUnix); err != nil {
			return nil, err
		}
		info.ModTime = time.Unix(modUnix, 0)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// PurgeOlderThan drops files of sessions idle longer than the given age.
// Called periodically so guest data does not accumulate forever.
func (v *VFS) PurgeOlderThan(age time.Duration) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cutoff := time.Now().Add(-age).Unix()
	res, err := v.db.Exec(`DELETE FROM files WHERE session_id IN (
		SELECT session_id FROM files GROUP BY session_id HAVING MAX(mod_time) < ?)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge files: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logger.Info(logger.AreaFileSystem, "purged %d stale files", n)
	}
	return n, nil
}
