package strux

import (
	"database/sql"
	"fmt"

	"github.com/hengadev/strux/internal/codec"
	"github.com/hengadev/strux/internal/compress"
)

// Inspection helpers used by tooling to walk a store without deserializing
// it. All of them address groups by slash-separated path from the root.

// AttrNames returns the sorted attribute names of a group, including the
// store-reserved attributes on the root.
func (s *Session) AttrNames(groupPath string) ([]string, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	nodeID, err := s.resolveGroup(groupPath)
	if err != nil {
		return nil, err
	}
	return s.queryNames(`SELECT name FROM attrs WHERE node_id = ? ORDER BY name`, nodeID)
}

// GroupNames returns the sorted names of a group's sub-groups.
func (s *Session) GroupNames(groupPath string) ([]string, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	nodeID, err := s.resolveGroup(groupPath)
	if err != nil {
		return nil, err
	}
	return s.queryNames(`SELECT name FROM nodes WHERE parent_id = ? ORDER BY name`, nodeID)
}

// DatasetNames returns the sorted names of a group's dataset leaves.
func (s *Session) DatasetNames(groupPath string) ([]string, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	nodeID, err := s.resolveGroup(groupPath)
	if err != nil {
		return nil, err
	}
	return s.queryNames(`SELECT name FROM datasets WHERE node_id = ? ORDER BY name`, nodeID)
}

// Dataset returns a lazy proxy on the named dataset leaf of a group.
func (s *Session) Dataset(groupPath, name string) (*ArrayProxy, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	nodeID, err := s.resolveGroup(groupPath)
	if err != nil {
		return nil, err
	}
	var (
		id          int64
		tag, dtype  string
		shapeBlob   []byte
		compression int
		metaBlob    []byte
	)
	err = s.db.QueryRow(
		`SELECT id, tag, dtype, shape, compression, meta FROM datasets WHERE node_id = ? AND name = ?`,
		nodeID, name,
	).Scan(&id, &tag, &dtype, &shapeBlob, &compression, &metaBlob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no dataset %q under group %q", ErrStoreNotFound, name, groupPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset %q: %w", name, err)
	}

	var rawShape any
	if err := codec.Unmarshal(shapeBlob, &rawShape); err != nil {
		return nil, fmt.Errorf("dataset %q shape: %w", name, err)
	}
	shape, err := toIntSlice(rawShape)
	if err != nil {
		return nil, fmt.Errorf("dataset %q shape: %w", name, err)
	}
	var meta map[string]any
	if err := codec.Unmarshal(metaBlob, &meta); err != nil {
		return nil, fmt.Errorf("dataset %q metadata: %w", name, err)
	}
	if meta == nil {
		meta = make(map[string]any)
	}

	return &ArrayProxy{
		sess:  s,
		id:    id,
		name:  name,
		tag:   tag,
		dtype: dtype,
		shape: shape,
		comp:  compress.Tag(compression),
		meta:  meta,
	}, nil
}

func (s *Session) queryNames(query string, nodeID int64) ([]string, error) {
	rows, err := s.db.Query(query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list names: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
