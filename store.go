package strux

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hengadev/strux/internal/codec"
	"github.com/hengadev/strux/internal/compress"
)

// Save serializes v and writes it into a store at path, opened under mode.
// Convenience wrapper over Open/Session.Save/Close.
func Save(v any, path string, mode Mode, opts ...Option) error {
	sess, err := Open(path, mode, opts...)
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.Save(v); err != nil {
		return err
	}
	return sess.Close()
}

// Load reads a store at path eagerly and reconstructs its root value. The
// store is opened read-only and released before returning; dataset leaves are
// fully materialized.
func Load(path string, opts ...Option) (any, error) {
	sess, err := Open(path, ModeReadOnly, opts...)
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	return sess.Load()
}

// Save serializes v and writes the resulting nested structure into the root
// group, replacing any previously saved content. Store identity attributes
// survive.
func (s *Session) Save(v any) error {
	if s.closed {
		return ErrSessionClosed
	}
	if !s.mode.writable() {
		return fmt.Errorf("%w: cannot save", ErrReadOnlyStore)
	}
	structure, err := s.registry.serialize(v, false)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	// Clear previous content, keeping the root node and its store-reserved
	// attributes.
	if _, err := tx.Exec(`DELETE FROM nodes WHERE parent_id = ?`, int64(rootNodeID)); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM attrs WHERE node_id = ? AND name NOT IN (?, ?)`,
		int64(rootNodeID), storeIDAttr, formatAttr,
	); err != nil {
		return fmt.Errorf("clear root attributes: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM datasets WHERE node_id = ?`, int64(rootNodeID)); err != nil {
		return fmt.Errorf("clear root datasets: %w", err)
	}

	if err := s.writeStructure(tx, rootNodeID, structure); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	s.logger.Debug("root value saved")
	return nil
}

// Load reconstructs the root value eagerly: dataset leaves are materialized
// and assembled through their registered converters.
func (s *Session) Load() (any, error) {
	return s.load(false)
}

// LoadLazy reconstructs the root value with dataset leaves represented as
// ArrayProxy handles bound to this session, instead of materialized arrays.
// The proxies stay valid until the session closes.
func (s *Session) LoadLazy() (any, error) {
	return s.load(true)
}

func (s *Session) load(lazy bool) (any, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	structure, err := s.readStructure(rootNodeID, lazy)
	if err != nil {
		return nil, err
	}
	return s.registry.deserialize(structure)
}

// writeStructure maps one level of a nested structure onto the group nodeID:
// primitives become attribute leaves, datasets become binary leaves with
// metadata attributes, containers and composites become tagged sub-groups.
func (s *Session) writeStructure(tx *sql.Tx, nodeID int64, structure any) error {
	switch st := structure.(type) {
	case []any:
		if err := s.writeGroupAttr(tx, nodeID, ContainerKindKey, KindSequence); err != nil {
			return err
		}
		if err := s.writeGroupAttr(tx, nodeID, lenAttr, len(st)); err != nil {
			return err
		}
		for i, elem := range st {
			if err := s.writeEntry(tx, nodeID, strconv.Itoa(i), elem); err != nil {
				return err
			}
		}
		return nil

	case map[string]any:
		if tag, ok := st[DatasetTagKey].(string); ok {
			// A dataset at group level (a dataset saved as the root value):
			// the tag marks the group and the payload becomes its sole leaf.
			if err := s.writeGroupAttr(tx, nodeID, DatasetTagKey, tag); err != nil {
				return err
			}
			return s.writeDataset(tx, nodeID, DatasetDataKey, tag, st)
		}
		if tag, ok := st[TypeTagKey].(string); ok {
			if err := s.writeGroupAttr(tx, nodeID, TypeTagKey, tag); err != nil {
				return err
			}
			return s.writeEntries(tx, nodeID, st)
		}
		if kind, ok := st[ContainerKindKey].(string); ok && kind == KindSet {
			items, _ := st[SetItemsKey].([]any)
			if err := s.writeGroupAttr(tx, nodeID, ContainerKindKey, KindSet); err != nil {
				return err
			}
			if err := s.writeGroupAttr(tx, nodeID, lenAttr, len(items)); err != nil {
				return err
			}
			for i, elem := range items {
				if err := s.writeEntry(tx, nodeID, strconv.Itoa(i), elem); err != nil {
					return err
				}
			}
			return nil
		}
		if err := s.writeGroupAttr(tx, nodeID, ContainerKindKey, KindMapping); err != nil {
			return err
		}
		return s.writeEntries(tx, nodeID, st)

	default:
		return fmt.Errorf("%w: root value must serialize to a group, got %T", ErrInvalidStructure, structure)
	}
}

// writeEntries writes the non-reserved keys of a composite or mapping
// structure in sorted order, so writes are deterministic.
func (s *Session) writeEntries(tx *sql.Tx, nodeID int64, st map[string]any) error {
	keys := make([]string, 0, len(st))
	for k := range st {
		if isReservedKey(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.writeEntry(tx, nodeID, k, st[k]); err != nil {
			return err
		}
	}
	return nil
}

// writeEntry stores one named value under the group nodeID, choosing the
// storage unit by the value's structural shape.
func (s *Session) writeEntry(tx *sql.Tx, nodeID int64, name string, value any) error {
	if isStoreReservedAttr(name) {
		return fmt.Errorf("%w: entry %q collides with a store-reserved attribute name",
			ErrInvalidStructure, name)
	}
	switch v := value.(type) {
	case map[string]any:
		if tag, ok := v[DatasetTagKey].(string); ok {
			return s.writeDataset(tx, nodeID, name, tag, v)
		}
		child, err := s.createChild(tx, nodeID, name)
		if err != nil {
			return err
		}
		return s.writeStructure(tx, child, v)
	case []any:
		child, err := s.createChild(tx, nodeID, name)
		if err != nil {
			return err
		}
		return s.writeStructure(tx, child, v)
	default:
		encoded, err := codec.Marshal(encodePrimitive(v))
		if err != nil {
			return fmt.Errorf("encode attribute %q: %w", name, err)
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO attrs (node_id, name, value) VALUES (?, ?, ?)`,
			nodeID, name, encoded,
		); err != nil {
			return fmt.Errorf("write attribute %q: %w", name, err)
		}
		return nil
	}
}

func (s *Session) writeGroupAttr(tx *sql.Tx, nodeID int64, name string, value any) error {
	encoded, err := codec.Marshal(encodePrimitive(value))
	if err != nil {
		return fmt.Errorf("encode attribute %q: %w", name, err)
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO attrs (node_id, name, value) VALUES (?, ?, ?)`,
		nodeID, name, encoded,
	); err != nil {
		return fmt.Errorf("write attribute %q: %w", name, err)
	}
	return nil
}

func (s *Session) createChild(tx *sql.Tx, parentID int64, name string) (int64, error) {
	res, err := tx.Exec(`INSERT INTO nodes (parent_id, name) VALUES (?, ?)`, parentID, name)
	if err != nil {
		return 0, fmt.Errorf("create group %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create group %q: %w", name, err)
	}
	return id, nil
}

// writeDataset stores a disassembled dataset structure as a binary leaf: one
// datasets row carrying the discriminator tag, shape, compression, and side
// metadata, plus one dataset_rows row per leading-axis index.
func (s *Session) writeDataset(tx *sql.Tx, nodeID int64, name, tag string, st map[string]any) error {
	data, err := toFloat64Slice(st[DatasetDataKey])
	if err != nil {
		return fmt.Errorf("dataset %q payload: %w", name, err)
	}

	meta := make(map[string]any)
	var shape []int
	hasShape := false
	for k, v := range st {
		if isReservedKey(k) || k == DatasetDataKey {
			continue
		}
		if k == "shape" {
			// The shape column is authoritative; it changes when a proxy
			// grows the leading axis, so it is kept out of the frozen
			// metadata blob and re-injected on read.
			shape, err = toIntSlice(v)
			if err != nil {
				return fmt.Errorf("dataset %q shape: %w", name, err)
			}
			hasShape = true
			continue
		}
		meta[k] = v
	}
	if !hasShape {
		shape = []int{len(data)}
	}
	if n := shapeSize(shape); n != len(data) {
		return fmt.Errorf("%w: dataset %q shape %v holds %d elements, payload has %d",
			ErrShapeViolation, name, shape, n, len(data))
	}

	shapeBlob, err := encodeShape(shape)
	if err != nil {
		return fmt.Errorf("dataset %q: %w", name, err)
	}
	metaBlob, err := codec.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode dataset %q metadata: %w", name, err)
	}

	res, err := tx.Exec(
		`INSERT INTO datasets (node_id, name, tag, dtype, shape, compression, meta)
		 VALUES (?, ?, ?, 'float64', ?, ?, ?)`,
		nodeID, name, tag, shapeBlob, int(s.comp), metaBlob,
	)
	if err != nil {
		return fmt.Errorf("write dataset %q: %w", name, err)
	}
	datasetID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("write dataset %q: %w", name, err)
	}

	width := rowSize(shape)
	rows := 1
	if len(shape) > 0 {
		rows = shape[0]
	}
	for i := 0; i < rows; i++ {
		payload, err := encodeRow(data[i*width:(i+1)*width], s.comp)
		if err != nil {
			return fmt.Errorf("dataset %q row %d: %w", name, i, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO dataset_rows (dataset_id, idx, payload) VALUES (?, ?, ?)`,
			datasetID, i, payload,
		); err != nil {
			return fmt.Errorf("dataset %q row %d: %w", name, i, err)
		}
	}
	return nil
}

// readStructure rebuilds the nested structure stored under the group nodeID.
// With lazy set, dataset leaves become ArrayProxy handles instead of tagged
// data+metadata mappings.
func (s *Session) readStructure(nodeID int64, lazy bool) (any, error) {
	attrs, err := s.readAttrs(nodeID)
	if err != nil {
		return nil, err
	}
	children, err := s.readChildren(nodeID)
	if err != nil {
		return nil, err
	}
	leaves, err := s.readDatasetLeaves(nodeID, lazy)
	if err != nil {
		return nil, err
	}

	if _, ok := attrs[DatasetTagKey].(string); ok {
		leaf, ok := leaves[DatasetDataKey]
		if !ok {
			return nil, fmt.Errorf("%w: dataset group is missing its payload leaf", ErrInvalidStructure)
		}
		return leaf, nil
	}

	kind, _ := attrs[ContainerKindKey].(string)
	if kind == KindSequence || kind == KindSet {
		length, err := toInt(attrs[lenAttr])
		if err != nil {
			return nil, fmt.Errorf("%w: group is missing its length attribute", ErrInvalidStructure)
		}
		items := make([]any, length)
		for i := 0; i < length; i++ {
			name := strconv.Itoa(i)
			switch {
			case children[name] != 0:
				sub, err := s.readStructure(children[name], lazy)
				if err != nil {
					return nil, err
				}
				items[i] = sub
			case leaves[name] != nil:
				items[i] = leaves[name]
			default:
				v, ok := attrs[name]
				if !ok {
					return nil, fmt.Errorf("%w: element %d missing from stored %s", ErrInvalidStructure, i, kind)
				}
				items[i] = v
			}
		}
		if kind == KindSet {
			return map[string]any{ContainerKindKey: KindSet, SetItemsKey: items}, nil
		}
		return items, nil
	}

	structure := make(map[string]any, len(attrs)+len(children)+len(leaves))
	if tag, ok := attrs[TypeTagKey].(string); ok {
		structure[TypeTagKey] = tag
	} else {
		structure[ContainerKindKey] = KindMapping
	}
	for name, v := range attrs {
		if isStoreReservedAttr(name) || isReservedKey(name) {
			continue
		}
		structure[name] = v
	}
	for name, childID := range children {
		sub, err := s.readStructure(childID, lazy)
		if err != nil {
			return nil, err
		}
		structure[name] = sub
	}
	for name, leaf := range leaves {
		structure[name] = leaf
	}
	return structure, nil
}

func (s *Session) readAttrs(nodeID int64) (map[string]any, error) {
	rows, err := s.db.Query(`SELECT name, value FROM attrs WHERE node_id = ?`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("read attributes: %w", err)
	}
	defer rows.Close()

	attrs := make(map[string]any)
	for rows.Next() {
		var name string
		var blob []byte
		if err := rows.Scan(&name, &blob); err != nil {
			return nil, fmt.Errorf("read attributes: %w", err)
		}
		v, err := decodeAttrBlob(blob, name)
		if err != nil {
			return nil, err
		}
		attrs[name] = v
	}
	return attrs, rows.Err()
}

func (s *Session) readChildren(nodeID int64) (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT name, id FROM nodes WHERE parent_id = ?`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("read groups: %w", err)
	}
	defer rows.Close()

	children := make(map[string]int64)
	for rows.Next() {
		var name string
		var id int64
		if err := rows.Scan(&name, &id); err != nil {
			return nil, fmt.Errorf("read groups: %w", err)
		}
		children[name] = id
	}
	return children, rows.Err()
}

// readDatasetLeaves returns each dataset under nodeID as either a tagged
// structure mapping (eager) or an ArrayProxy (lazy).
func (s *Session) readDatasetLeaves(nodeID int64, lazy bool) (map[string]any, error) {
	rows, err := s.db.Query(
		`SELECT id, name, tag, dtype, shape, compression, meta FROM datasets WHERE node_id = ?`,
		nodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("read datasets: %w", err)
	}
	defer rows.Close()

	leaves := make(map[string]any)
	for rows.Next() {
		var (
			id          int64
			name, tag   string
			dtype       string
			shapeBlob   []byte
			compression int
			metaBlob    []byte
		)
		if err := rows.Scan(&id, &name, &tag, &dtype, &shapeBlob, &compression, &metaBlob); err != nil {
			return nil, fmt.Errorf("read datasets: %w", err)
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

		proxy := &ArrayProxy{
			sess:  s,
			id:    id,
			name:  name,
			tag:   tag,
			dtype: dtype,
			shape: shape,
			comp:  compress.Tag(compression),
			meta:  meta,
		}
		if lazy {
			leaves[name] = proxy
			continue
		}
		structure, err := proxy.structure()
		if err != nil {
			return nil, err
		}
		leaves[name] = structure
	}
	return leaves, rows.Err()
}

func isStoreReservedAttr(name string) bool {
	return name == storeIDAttr || name == formatAttr || name == lenAttr
}

// encodeShape renders extents as the CBOR blob stored in the shape column.
func encodeShape(shape []int) ([]byte, error) {
	blob, err := codec.Marshal(shape)
	if err != nil {
		return nil, fmt.Errorf("encode shape: %w", err)
	}
	return blob, nil
}

// encodeRow packs one leading-axis row as little-endian float64s and
// compresses it.
func encodeRow(values []float64, comp compress.Tag) ([]byte, error) {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return compress.Encode(comp, buf)
}

// decodeRow reverses encodeRow. A nil payload yields a zero-filled row, the
// fill value of rows created by leading-axis growth.
func decodeRow(payload []byte, width int, comp compress.Tag) ([]float64, error) {
	values := make([]float64, width)
	if payload == nil {
		return values, nil
	}
	buf, err := compress.Decode(comp, payload)
	if err != nil {
		return nil, err
	}
	if len(buf) != 8*width {
		return nil, fmt.Errorf("%w: row holds %d bytes, expected %d", ErrInvalidStructure, len(buf), 8*width)
	}
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return values, nil
}

// encodePrimitive maps a primitive onto its stored form. Plain text, numbers,
// and booleans store directly; null and filesystem paths take the encoded
// string forms "NoneType:None" and "Path:<absolute-path>" so the type is
// recoverable on read.
func encodePrimitive(v any) any {
	switch t := v.(type) {
	case nil:
		return "NoneType:None"
	case Path:
		p := string(t)
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		return "Path:" + p
	default:
		return v
	}
}

// encodePrimitiveString is encodePrimitive for the structure snapshot codec.
func encodePrimitiveString(v any) any { return encodePrimitive(v) }

// decodePrimitive reverses encodePrimitive and normalizes CBOR integer
// decoding to int.
func decodePrimitive(v any) any {
	switch t := v.(type) {
	case string:
		return decodePrimitiveString(t)
	case uint64:
		return int(t)
	case int64:
		return int(t)
	default:
		return v
	}
}

func decodePrimitiveString(s string) any {
	if s == "NoneType:None" {
		return nil
	}
	if rest, ok := strings.CutPrefix(s, "Path:"); ok {
		return Path(rest)
	}
	return s
}
