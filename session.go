package strux

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hengadev/strux/internal/codec"
	"github.com/hengadev/strux/internal/compress"
)

// formatVersion is bumped on incompatible store layout changes. Opening a
// store written with a different version fails with ErrFormatMismatch rather
// than misparsing.
const formatVersion = 1

// Reserved attribute names owned by the store itself, never part of a
// serialized structure.
const (
	storeIDAttr = "__store_id__"
	formatAttr  = "__format_version__"
	lenAttr     = "__len__"
)

// Mode selects how Open treats the backing file, mirroring standard
// file-open semantics.
type Mode int

const (
	// ModeReadOnly opens an existing store and forbids every mutation.
	ModeReadOnly Mode = iota
	// ModeReadWrite opens an existing store for reading and writing.
	ModeReadWrite
	// ModeTruncate discards any existing store and creates a fresh one.
	ModeTruncate
	// ModeReadWriteCreate opens for reading and writing, creating the store
	// if absent.
	ModeReadWriteCreate
)

// String returns the mode name used in logs and errors.
func (m Mode) String() string {
	switch m {
	case ModeReadOnly:
		return "read-only"
	case ModeReadWrite:
		return "read-write"
	case ModeTruncate:
		return "truncate"
	case ModeReadWriteCreate:
		return "read-write-create"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func (m Mode) writable() bool { return m != ModeReadOnly }

// Session is a scoped handle on one hierarchical store. It holds the store's
// file for its lifetime and must be closed to flush pending attribute
// mutations and release the handle. Two sessions open against the same
// destination, in or across processes, have undefined interleaving.
type Session struct {
	db       *sql.DB
	registry *Registry
	path     string
	mode     Mode
	id       string
	cfg      Config
	comp     compress.Tag
	logger   *slog.Logger
	pending  []pendingAttr
	closed   bool
}

type pendingAttr struct {
	group string
	name  string
	value any
}

// Option configures a Session at Open time.
type Option func(*Session) error

// WithConfig applies a full Config. The config is validated.
func WithConfig(cfg Config) Option {
	return func(s *Session) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		s.cfg = cfg
		return nil
	}
}

// WithCompression overrides the dataset row compression for this session:
// "none", "lz4", or "zstd".
func WithCompression(name string) Option {
	return func(s *Session) error {
		s.cfg.Compression = name
		return nil
	}
}

// WithLogger replaces the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		s.logger = logger
		return nil
	}
}

// WithRegistry resolves composite and dataset types against a registry other
// than the package default.
func WithRegistry(r *Registry) Option {
	return func(s *Session) error {
		s.registry = r
		return nil
	}
}

// Open opens the hierarchical store at path under the given mode and returns
// a Session. The caller owns the session and must Close it; defer works:
//
//	sess, err := strux.Open("run.strux", strux.ModeReadWriteCreate)
//	if err != nil { ... }
//	defer sess.Close()
func Open(path string, mode Mode, opts ...Option) (*Session, error) {
	s := &Session{
		registry: defaultRegistry,
		path:     path,
		mode:     mode,
		id:       uuid.NewString(),
		cfg:      Config{Compression: DefaultCompression, LogLevel: DefaultLogLevel},
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	tag, err := compress.Parse(s.cfg.Compression)
	if err != nil {
		return nil, err
	}
	s.comp = tag
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: s.cfg.slogLevel(),
		}))
	}
	s.logger = s.logger.With("session", s.id, "store", path)

	exists := false
	if _, err := os.Stat(path); err == nil {
		exists = true
	}

	switch mode {
	case ModeReadOnly, ModeReadWrite:
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, path)
		}
	case ModeTruncate:
		if exists {
			if err := os.Remove(path); err != nil {
				return nil, fmt.Errorf("truncate store %s: %w", path, err)
			}
			exists = false
		}
	case ModeReadWriteCreate:
	default:
		return nil, fmt.Errorf("invalid open mode %d", int(mode))
	}

	dsn := "file:" + path + "?_fk=1"
	if mode == ModeReadOnly {
		dsn += "&mode=ro"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	s.db = db

	if !exists {
		if err := s.initSchema(); err != nil {
			db.Close()
			return nil, err
		}
	} else if err := s.checkFormat(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Debug("store session opened", "mode", mode.String(), "compression", s.comp.String())
	return s, nil
}

func (s *Session) initSchema() error {
	const schema = `
CREATE TABLE nodes (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	parent_id INTEGER REFERENCES nodes(id) ON DELETE CASCADE,
	name      TEXT NOT NULL,
	UNIQUE(parent_id, name)
);
CREATE TABLE attrs (
	node_id INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	name    TEXT NOT NULL,
	value   BLOB NOT NULL,
	PRIMARY KEY(node_id, name)
);
CREATE TABLE datasets (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	node_id     INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	tag         TEXT NOT NULL,
	dtype       TEXT NOT NULL DEFAULT 'float64',
	shape       BLOB NOT NULL,
	compression INTEGER NOT NULL DEFAULT 0,
	meta        BLOB NOT NULL,
	UNIQUE(node_id, name)
);
CREATE TABLE dataset_rows (
	dataset_id INTEGER NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	idx        INTEGER NOT NULL,
	payload    BLOB NOT NULL,
	PRIMARY KEY(dataset_id, idx)
);
INSERT INTO nodes (id, parent_id, name) VALUES (1, NULL, '/');
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initialize store schema: %w", err)
	}
	if err := s.writeAttr(rootNodeID, storeIDAttr, uuid.NewString()); err != nil {
		return err
	}
	if err := s.writeAttr(rootNodeID, formatAttr, formatVersion); err != nil {
		return err
	}
	return nil
}

func (s *Session) checkFormat() error {
	raw, err := s.readAttr(rootNodeID, formatAttr)
	if err != nil {
		return fmt.Errorf("%w: %s is not a strux store", ErrFormatMismatch, s.path)
	}
	version, err := toInt(raw)
	if err != nil || version != formatVersion {
		return fmt.Errorf("%w: store version %v, supported version %d", ErrFormatMismatch, raw, formatVersion)
	}
	return nil
}

// StoreID returns the identity attribute written when the store was created.
func (s *Session) StoreID() (string, error) {
	if s.closed {
		return "", ErrSessionClosed
	}
	raw, err := s.readAttr(rootNodeID, storeIDAttr)
	if err != nil {
		return "", err
	}
	id, _ := raw.(string)
	return id, nil
}

// Mode returns the mode the session was opened with.
func (s *Session) Mode() Mode { return s.mode }

// SetAttr records an attribute mutation on the group at groupPath ("/" for
// the root, "a/b" for nested groups). Mutations are buffered in call order
// and persisted by Flush or Close; Attr sees them immediately.
func (s *Session) SetAttr(groupPath, name string, value any) error {
	if s.closed {
		return ErrSessionClosed
	}
	if !s.mode.writable() {
		return fmt.Errorf("%w: cannot set attribute %q", ErrReadOnlyStore, name)
	}
	if isStoreReservedAttr(name) {
		return fmt.Errorf("%w: attribute name %q is reserved by the store", ErrInvalidStructure, name)
	}
	if _, err := s.resolveGroup(groupPath); err != nil {
		return err
	}
	s.pending = append(s.pending, pendingAttr{group: groupPath, name: name, value: value})
	return nil
}

// Attr reads an attribute from the group at groupPath, preferring pending
// mutations over persisted state.
func (s *Session) Attr(groupPath, name string) (any, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	for i := len(s.pending) - 1; i >= 0; i-- {
		p := s.pending[i]
		if p.group == groupPath && p.name == name {
			return p.value, nil
		}
	}
	nodeID, err := s.resolveGroup(groupPath)
	if err != nil {
		return nil, err
	}
	return s.readAttr(nodeID, name)
}

// Flush persists pending attribute mutations in call order.
func (s *Session) Flush() error {
	if s.closed {
		return ErrSessionClosed
	}
	for _, p := range s.pending {
		nodeID, err := s.resolveGroup(p.group)
		if err != nil {
			return err
		}
		if err := s.writeAttr(nodeID, p.name, p.value); err != nil {
			return err
		}
	}
	s.pending = s.pending[:0]
	return nil
}

// Close flushes pending attribute mutations and releases the store handle.
// Closing an already-closed session is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	var flushErr error
	if s.mode.writable() && len(s.pending) > 0 {
		flushErr = s.Flush()
	}
	s.closed = true
	if err := s.db.Close(); err != nil && flushErr == nil {
		flushErr = fmt.Errorf("close store %s: %w", s.path, err)
	}
	s.logger.Debug("store session closed")
	return flushErr
}

// resolveGroup walks a slash-separated group path from the root and returns
// the node id.
func (s *Session) resolveGroup(groupPath string) (int64, error) {
	nodeID := int64(rootNodeID)
	trimmed := strings.Trim(groupPath, "/")
	if trimmed == "" {
		return nodeID, nil
	}
	for _, part := range strings.Split(trimmed, "/") {
		var next int64
		err := s.db.QueryRow(
			`SELECT id FROM nodes WHERE parent_id = ? AND name = ?`, nodeID, part,
		).Scan(&next)
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("%w: no group %q under path %q", ErrStoreNotFound, part, groupPath)
		}
		if err != nil {
			return 0, fmt.Errorf("resolve group %q: %w", groupPath, err)
		}
		nodeID = next
	}
	return nodeID, nil
}

func (s *Session) writeAttr(nodeID int64, name string, value any) error {
	encoded, err := codec.Marshal(encodePrimitive(value))
	if err != nil {
		return fmt.Errorf("encode attribute %q: %w", name, err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO attrs (node_id, name, value) VALUES (?, ?, ?)`,
		nodeID, name, encoded,
	)
	if err != nil {
		return fmt.Errorf("write attribute %q: %w", name, err)
	}
	return nil
}

func (s *Session) readAttr(nodeID int64, name string) (any, error) {
	var blob []byte
	err := s.db.QueryRow(
		`SELECT value FROM attrs WHERE node_id = ? AND name = ?`, nodeID, name,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no attribute %q", ErrStoreNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read attribute %q: %w", name, err)
	}
	return decodeAttrBlob(blob, name)
}

func decodeAttrBlob(blob []byte, name string) (any, error) {
	var raw any
	if err := codec.Unmarshal(blob, &raw); err != nil {
		return nil, fmt.Errorf("decode attribute %q: %w", name, err)
	}
	return decodePrimitive(raw), nil
}

const rootNodeID = 1
