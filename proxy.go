package strux

import (
	"database/sql"
	"fmt"

	"github.com/hengadev/strux/internal/compress"
)

// ArrayProxy is a non-owning handle on one stored dataset leaf. It reads and
// writes elements, leading-axis slices, and appended rows without ever
// materializing the whole array, and stays valid until its session closes.
//
// Writes past the current leading-axis extent grow it; rows skipped over by
// such growth read back as the zero fill value. Growth along any other axis,
// or any growth of a 0-dimensional leaf, is a storage-shape violation. The
// proxy deliberately offers no whole-array arithmetic or iteration; call
// Materialize first when an operation needs the full array.
type ArrayProxy struct {
	sess  *Session
	id    int64
	name  string
	tag   string
	dtype string
	shape []int
	comp  compress.Tag
	meta  map[string]any
}

// Name returns the leaf's name within its group.
func (p *ArrayProxy) Name() string { return p.name }

// Tag returns the dataset-kind discriminator stored on the leaf.
func (p *ArrayProxy) Tag() string { return p.tag }

// Dtype returns the element type name.
func (p *ArrayProxy) Dtype() string { return p.dtype }

// Shape returns a copy of the current extents.
func (p *ArrayProxy) Shape() []int {
	shape := make([]int, len(p.shape))
	copy(shape, p.shape)
	return shape
}

// NDim returns the number of axes.
func (p *ArrayProxy) NDim() int { return len(p.shape) }

// Len returns the leading-axis extent, or 1 for a 0-dimensional leaf.
func (p *ArrayProxy) Len() int {
	if len(p.shape) == 0 {
		return 1
	}
	return p.shape[0]
}

// Size returns the total element count.
func (p *ArrayProxy) Size() int { return shapeSize(p.shape) }

// NBytes returns the uncompressed byte size of the stored elements.
func (p *ArrayProxy) NBytes() int { return 8 * p.Size() }

// Metadata returns a copy of the leaf's side metadata, including the current
// shape.
func (p *ArrayProxy) Metadata() map[string]any {
	meta := make(map[string]any, len(p.meta)+1)
	for k, v := range p.meta {
		meta[k] = v
	}
	meta["shape"] = p.Shape()
	return meta
}

// At reads one element. The index count must match the dimensionality; a
// 0-dimensional leaf is read with no indices. Reads never grow the array, so
// every index must be in bounds.
func (p *ArrayProxy) At(indices ...int) (float64, error) {
	if err := p.check(false); err != nil {
		return 0, err
	}
	if len(indices) != len(p.shape) {
		return 0, fmt.Errorf("%w: %d indices for %d-dimensional dataset %q",
			ErrShapeViolation, len(indices), len(p.shape), p.name)
	}
	row, offset := 0, 0
	if len(p.shape) > 0 {
		for axis, idx := range indices {
			if idx < 0 || idx >= p.shape[axis] {
				return 0, NewOutOfBoundsError(idx, p.shape[axis], axis)
			}
		}
		row = indices[0]
		for axis := 1; axis < len(indices); axis++ {
			offset = offset*p.shape[axis] + indices[axis]
		}
	}
	values, err := p.readRow(row)
	if err != nil {
		return 0, err
	}
	return values[offset], nil
}

// SetAt writes one element. A leading-axis index past the current extent
// grows the array to include it; indices along any other axis must be in
// bounds.
func (p *ArrayProxy) SetAt(value float64, indices ...int) error {
	if err := p.check(true); err != nil {
		return err
	}
	if len(indices) != len(p.shape) {
		return fmt.Errorf("%w: %d indices for %d-dimensional dataset %q",
			ErrShapeViolation, len(indices), len(p.shape), p.name)
	}
	row, offset := 0, 0
	if len(p.shape) > 0 {
		for axis := 1; axis < len(indices); axis++ {
			if indices[axis] >= p.shape[axis] {
				return NewShapeViolationError("growth", axis)
			}
			if indices[axis] < 0 {
				return NewOutOfBoundsError(indices[axis], p.shape[axis], axis)
			}
			offset = offset*p.shape[axis] + indices[axis]
		}
		row = indices[0]
		if row < 0 {
			return NewOutOfBoundsError(row, p.shape[0], 0)
		}
		if row >= p.shape[0] {
			if err := p.grow(row + 1); err != nil {
				return err
			}
		}
	}
	values, err := p.readRow(row)
	if err != nil {
		return err
	}
	values[offset] = value
	return p.writeRow(row, values)
}

// Row reads one leading-axis row as a flat slice of its elements.
func (p *ArrayProxy) Row(i int) ([]float64, error) {
	if err := p.check(false); err != nil {
		return nil, err
	}
	if i < 0 || i >= p.Len() {
		return nil, NewOutOfBoundsError(i, p.Len(), 0)
	}
	return p.readRow(i)
}

// Slice reads the half-open leading-axis range [start, stop) as an Array of
// shape [stop-start, trailing extents...].
func (p *ArrayProxy) Slice(start, stop int) (*Array, error) {
	if err := p.check(false); err != nil {
		return nil, err
	}
	if len(p.shape) == 0 {
		return nil, fmt.Errorf("%w: dataset %q cannot be sliced", ErrScalarResize, p.name)
	}
	if start < 0 || stop < start || stop > p.shape[0] {
		return nil, fmt.Errorf("%w: slice [%d:%d) outside extent %d of dataset %q",
			ErrOutOfBounds, start, stop, p.shape[0], p.name)
	}
	width := rowSize(p.shape)
	data := make([]float64, 0, (stop-start)*width)
	for i := start; i < stop; i++ {
		values, err := p.readRow(i)
		if err != nil {
			return nil, err
		}
		data = append(data, values...)
	}
	shape := append([]int{stop - start}, p.shape[1:]...)
	return &Array{Data: data, Shape: shape}, nil
}

// SetSlice writes rows starting at leading-axis index start. The trailing
// extents of rows must match the leaf's; writing past the current extent
// grows it.
func (p *ArrayProxy) SetSlice(start int, rows *Array) error {
	if err := p.check(true); err != nil {
		return err
	}
	if len(p.shape) == 0 {
		return fmt.Errorf("%w: dataset %q", ErrScalarResize, p.name)
	}
	if start < 0 {
		return NewOutOfBoundsError(start, p.shape[0], 0)
	}
	if err := p.checkTrailing(rows); err != nil {
		return err
	}
	count := rows.Len()
	if end := start + count; end > p.shape[0] {
		if err := p.grow(end); err != nil {
			return err
		}
	}
	width := rowSize(p.shape)
	for i := 0; i < count; i++ {
		if err := p.writeRow(start+i, rows.Data[i*width:(i+1)*width]); err != nil {
			return err
		}
	}
	return nil
}

// Append extends the leading axis by rows.Len(), writing the appended rows at
// the end. The trailing extents must match.
func (p *ArrayProxy) Append(rows *Array) error {
	if err := p.check(true); err != nil {
		return err
	}
	if len(p.shape) == 0 {
		return fmt.Errorf("%w: dataset %q cannot be appended to", ErrScalarResize, p.name)
	}
	return p.SetSlice(p.shape[0], rows)
}

// Materialize reads the whole leaf into an Array.
func (p *ArrayProxy) Materialize() (*Array, error) {
	if err := p.check(false); err != nil {
		return nil, err
	}
	if len(p.shape) == 0 {
		values, err := p.readRow(0)
		if err != nil {
			return nil, err
		}
		return &Array{Data: values, Shape: nil}, nil
	}
	return p.Slice(0, p.shape[0])
}

// Assemble materializes the leaf and rebuilds the original dataset instance
// through the converter registered for the leaf's tag.
func (p *ArrayProxy) Assemble() (any, error) {
	structure, err := p.structure()
	if err != nil {
		return nil, err
	}
	return p.sess.registry.deserialize(structure)
}

// structure renders the leaf as an eager tagged dataset structure.
func (p *ArrayProxy) structure() (map[string]any, error) {
	arr, err := p.Materialize()
	if err != nil {
		return nil, err
	}
	structure := map[string]any{
		DatasetTagKey:  p.tag,
		DatasetDataKey: arr.Data,
		"shape":        p.Shape(),
	}
	for k, v := range p.meta {
		if isReservedKey(k) || k == DatasetDataKey || k == "shape" {
			continue
		}
		structure[k] = v
	}
	return structure, nil
}

func (p *ArrayProxy) check(write bool) error {
	if p.sess.closed {
		return ErrSessionClosed
	}
	if write && !p.sess.mode.writable() {
		return fmt.Errorf("%w: cannot write dataset %q", ErrReadOnlyStore, p.name)
	}
	return nil
}

// checkTrailing verifies that rows carries the leaf's trailing extents: a
// vector for a 1-dimensional leaf, otherwise matching shapes after the
// leading axis.
func (p *ArrayProxy) checkTrailing(rows *Array) error {
	if rows.NDim() != len(p.shape) {
		return fmt.Errorf("%w: %d-dimensional rows for %d-dimensional dataset %q",
			ErrShapeViolation, rows.NDim(), len(p.shape), p.name)
	}
	for axis := 1; axis < len(p.shape); axis++ {
		if rows.Shape[axis] != p.shape[axis] {
			return NewShapeViolationError("growth", axis)
		}
	}
	return nil
}

// grow extends the leading axis to newLen and persists the new shape. Rows in
// the grown region are not written; they read back zero-filled.
func (p *ArrayProxy) grow(newLen int) error {
	shape := p.Shape()
	shape[0] = newLen
	blob, err := encodeShape(shape)
	if err != nil {
		return fmt.Errorf("dataset %q: %w", p.name, err)
	}
	if _, err := p.sess.db.Exec(
		`UPDATE datasets SET shape = ? WHERE id = ?`, blob, p.id,
	); err != nil {
		return fmt.Errorf("grow dataset %q: %w", p.name, err)
	}
	p.sess.logger.Debug("dataset leading axis grown",
		"dataset", p.name, "from", p.shape[0], "to", newLen)
	p.shape[0] = newLen
	return nil
}

func (p *ArrayProxy) readRow(i int) ([]float64, error) {
	var payload []byte
	err := p.sess.db.QueryRow(
		`SELECT payload FROM dataset_rows WHERE dataset_id = ? AND idx = ?`, p.id, i,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		payload = nil
	} else if err != nil {
		return nil, fmt.Errorf("read dataset %q row %d: %w", p.name, i, err)
	}
	values, err := decodeRow(payload, rowSize(p.shape), p.comp)
	if err != nil {
		return nil, fmt.Errorf("dataset %q row %d: %w", p.name, i, err)
	}
	return values, nil
}

func (p *ArrayProxy) writeRow(i int, values []float64) error {
	payload, err := encodeRow(values, p.comp)
	if err != nil {
		return fmt.Errorf("dataset %q row %d: %w", p.name, i, err)
	}
	if _, err := p.sess.db.Exec(
		`INSERT OR REPLACE INTO dataset_rows (dataset_id, idx, payload) VALUES (?, ?, ?)`,
		p.id, i, payload,
	); err != nil {
		return fmt.Errorf("write dataset %q row %d: %w", p.name, i, err)
	}
	return nil
}
