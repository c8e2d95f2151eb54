package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/Abdirazakf/file-uploader/internal/models"
)

// SQLStore implements Store on database/sql. Production runs it against
// PostgreSQL (lib/pq); tests run the same code against SQLite in memory.
// Both engines accept $n placeholders, so the queries are shared and all
// timestamps are set in Go rather than by the engine.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// Open connects, configures the pool and creates the schema.
func Open(driver, dsn string) (*SQLStore, error) {
	if driver == "sqlite3" && !strings.Contains(dsn, "_foreign_keys") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_foreign_keys=on"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == "sqlite3" {
		// A pooled :memory: DSN would hand every connection its own empty
		// database, so pin the pool to one connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[DB] connected (%s)", driver)
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    password VARCHAR(255) NOT NULL,
    name VARCHAR(255) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS folders (
    id UUID PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    parent_id UUID REFERENCES folders(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS files (
    id UUID PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    original_name VARCHAR(255) NOT NULL,
    size BIGINT NOT NULL,
    mime_type VARCHAR(100) NOT NULL,
    url VARCHAR(500) NOT NULL,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    folder_id UUID REFERENCES folders(id) ON DELETE CASCADE,
    scan_status VARCHAR(20) NOT NULL DEFAULT 'pending',
    scanned_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_folders_user_id ON folders(user_id);
CREATE INDEX IF NOT EXISTS idx_folders_parent_id ON folders(parent_id);
CREATE INDEX IF NOT EXISTS idx_files_user_id ON files(user_id);
CREATE INDEX IF NOT EXISTS idx_files_folder_id ON files(folder_id);
CREATE INDEX IF NOT EXISTS idx_files_created_at ON files(created_at DESC);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password TEXT NOT NULL,
    name TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS folders (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    parent_id TEXT REFERENCES folders(id) ON DELETE CASCADE,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS files (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    original_name TEXT NOT NULL,
    size BIGINT NOT NULL,
    mime_type TEXT NOT NULL,
    url TEXT NOT NULL,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    folder_id TEXT REFERENCES folders(id) ON DELETE CASCADE,
    scan_status TEXT NOT NULL DEFAULT 'pending',
    scanned_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_folders_user_id ON folders(user_id);
CREATE INDEX IF NOT EXISTS idx_folders_parent_id ON folders(parent_id);
CREATE INDEX IF NOT EXISTS idx_files_user_id ON files(user_id);
CREATE INDEX IF NOT EXISTS idx_files_folder_id ON files(folder_id);
`

func (s *SQLStore) createTables() error {
	schema := postgresSchema
	if s.driver == "sqlite3" {
		schema = sqliteSchema
	}
	_, err := s.db.Exec(schema)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Users

func (s *SQLStore) CreateUser(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (id, email, password, name, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Email, u.Password, u.Name, u.CreatedAt, u.UpdatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (s *SQLStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, password, name, created_at, updated_at
              FROM users WHERE email = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, email, password, name, created_at, updated_at
              FROM users WHERE id = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLStore) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Folders

const folderColumns = `id, name, user_id, parent_id, created_at, updated_at`

func (s *SQLStore) CreateFolder(ctx context.Context, f *models.Folder) error {
	query := `INSERT INTO folders (` + folderColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query,
		f.ID, f.Name, f.OwnerID, nullable(f.ParentID), f.CreatedAt, f.UpdatedAt)
	return err
}

func (s *SQLStore) FolderByID(ctx context.Context, ownerID, id string) (*models.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE id = $1 AND user_id = $2`
	row := s.db.QueryRowContext(ctx, query, id, ownerID)

	var f models.Folder
	var parent sql.NullString
	err := row.Scan(&f.ID, &f.Name, &f.OwnerID, &parent, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if parent.Valid {
		f.ParentID = &parent.String
	}
	return &f, nil
}

func (s *SQLStore) RootFolders(ctx context.Context, ownerID string) ([]models.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders
              WHERE user_id = $1 AND parent_id IS NULL
              ORDER BY created_at ASC`
	return s.queryFolders(ctx, query, ownerID)
}

func (s *SQLStore) Subfolders(ctx context.Context, ownerID, parentID string, newestFirst bool) ([]models.Folder, error) {
	order := "ASC"
	if newestFirst {
		order = "DESC"
	}
	query := `SELECT ` + folderColumns + ` FROM folders
              WHERE user_id = $1 AND parent_id = $2
              ORDER BY created_at ` + order
	return s.queryFolders(ctx, query, ownerID, parentID)
}

func (s *SQLStore) queryFolders(ctx context.Context, query string, args ...any) ([]models.Folder, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []models.Folder
	for rows.Next() {
		var f models.Folder
		var parent sql.NullString
		if err := rows.Scan(&f.ID, &f.Name, &f.OwnerID, &parent, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		if parent.Valid {
			f.ParentID = &parent.String
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

func (s *SQLStore) UpdateFolderName(ctx context.Context, ownerID, id, name string, updatedAt time.Time) (int64, error) {
	query := `UPDATE folders SET name = $1, updated_at = $2
              WHERE id = $3 AND user_id = $4`
	res, err := s.db.ExecContext(ctx, query, name, updatedAt, id, ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLStore) DeleteFolder(ctx context.Context, ownerID, id string) (int64, error) {
	// The FK cascade removes the whole subtree in the same statement.
	query := `DELETE FROM folders WHERE id = $1 AND user_id = $2`
	res, err := s.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLStore) CountChildren(ctx context.Context, ownerID, folderID string) (models.ChildCounts, error) {
	var counts models.ChildCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM files WHERE user_id = $1 AND folder_id = $2`,
		ownerID, folderID).Scan(&counts.Files)
	if err != nil {
		return counts, err
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM folders WHERE user_id = $1 AND parent_id = $2`,
		ownerID, folderID).Scan(&counts.Subfolders)
	return counts, err
}

// Files

const fileColumns = `id, name, original_name, size, mime_type, url, user_id, folder_id, scan_status, created_at`

func (s *SQLStore) CreateFile(ctx context.Context, f *models.File) error {
	query := `INSERT INTO files (` + fileColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.db.ExecContext(ctx, query,
		f.ID, f.Name, f.OriginalName, f.Size, f.MimeType, f.URL,
		f.OwnerID, nullable(f.FolderID), f.ScanStatus, f.CreatedAt)
	return err
}

func (s *SQLStore) FileByID(ctx context.Context, ownerID, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND user_id = $2`
	rows, err := s.db.QueryContext(ctx, query, id, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	f, err := scanFile(rows)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *SQLStore) RootFiles(ctx context.Context, ownerID string) ([]models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
              WHERE user_id = $1 AND folder_id IS NULL
              ORDER BY created_at DESC`
	return s.queryFiles(ctx, query, ownerID)
}

func (s *SQLStore) FilesInFolder(ctx context.Context, ownerID, folderID string) ([]models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
              WHERE user_id = $1 AND folder_id = $2
              ORDER BY created_at DESC`
	return s.queryFiles(ctx, query, ownerID, folderID)
}

func (s *SQLStore) AllFiles(ctx context.Context, ownerID string) ([]models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
              WHERE user_id = $1 ORDER BY created_at DESC`
	return s.queryFiles(ctx, query, ownerID)
}

func (s *SQLStore) SearchFiles(ctx context.Context, ownerID, term string) ([]models.File, error) {
	pattern := "%" + strings.ToLower(term) + "%"
	query := `SELECT ` + fileColumns + ` FROM files
              WHERE user_id = $1 AND (LOWER(name) LIKE $2 OR LOWER(original_name) LIKE $2)
              ORDER BY created_at DESC`
	return s.queryFiles(ctx, query, ownerID, pattern)
}

func (s *SQLStore) queryFiles(ctx context.Context, query string, args ...any) ([]models.File, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func scanFile(rows *sql.Rows) (models.File, error) {
	var f models.File
	var folder sql.NullString
	err := rows.Scan(&f.ID, &f.Name, &f.OriginalName, &f.Size, &f.MimeType,
		&f.URL, &f.OwnerID, &folder, &f.ScanStatus, &f.CreatedAt)
	if err != nil {
		return f, err
	}
	if folder.Valid {
		f.FolderID = &folder.String
	}
	return f, nil
}

func (s *SQLStore) UpdateFile(ctx context.Context, ownerID, id string, patch FilePatch) (int64, error) {
	var set []string
	var args []any
	n := 1

	if patch.OriginalName != nil {
		set = append(set, fmt.Sprintf("original_name = $%d", n))
		args = append(args, *patch.OriginalName)
		n++
	}
	if patch.MoveToRoot {
		set = append(set, "folder_id = NULL")
	} else if patch.FolderID != nil {
		set = append(set, fmt.Sprintf("folder_id = $%d", n))
		args = append(args, *patch.FolderID)
		n++
	}
	if len(set) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`UPDATE files SET %s WHERE id = $%d AND user_id = $%d`,
		strings.Join(set, ", "), n, n+1)
	args = append(args, id, ownerID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLStore) DeleteFile(ctx context.Context, ownerID, id string) (int64, error) {
	query := `DELETE FROM files WHERE id = $1 AND user_id = $2`
	res, err := s.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLStore) SetFileScanStatus(ctx context.Context, id, status string, at time.Time) error {
	query := `UPDATE files SET scan_status = $1, scanned_at = $2 WHERE id = $3`
	_, err := s.db.ExecContext(ctx, query, status, at, id)
	return err
}

func (s *SQLStore) DeleteUserData(ctx context.Context, ownerID string) (int64, int64, error) {
	// Folder cascade takes the nested rows with it; the second statement
	// sweeps root-level files.
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM folders WHERE user_id = $1`, ownerID)
	if err != nil {
		return 0, 0, err
	}
	folders, _ := res.RowsAffected()

	res, err = s.db.ExecContext(ctx,
		`DELETE FROM files WHERE user_id = $1`, ownerID)
	if err != nil {
		return folders, 0, err
	}
	files, _ := res.RowsAffected()
	return folders, files, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
