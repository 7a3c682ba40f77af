package strux

import (
	"fmt"
	"reflect"
	"time"
)

// Qualified tags of the built-in dataset types.
const (
	ArrayTag     = "strux.Array"
	TimestampTag = "strux.Timestamp"
	TimeIndexTag = "strux.TimeIndex"
)

// Array is a dense n-dimensional numeric array stored as a flat float64 buffer
// in row-major order. A nil or empty Shape means a 0-dimensional scalar array
// holding exactly one element.
type Array struct {
	Data  []float64
	Shape []int
}

// NewArray builds an Array and checks that the buffer length matches the
// shape's element count.
func NewArray(data []float64, shape ...int) (*Array, error) {
	if len(shape) == 0 && len(data) != 1 {
		return nil, fmt.Errorf("%w: 0-dimensional array requires exactly 1 element, got %d",
			ErrShapeViolation, len(data))
	}
	if n := shapeSize(shape); len(shape) > 0 && len(data) != n {
		return nil, fmt.Errorf("%w: shape %v holds %d elements, buffer has %d",
			ErrShapeViolation, shape, n, len(data))
	}
	return &Array{Data: data, Shape: shape}, nil
}

// Vector builds a 1-dimensional Array over data.
func Vector(data ...float64) *Array {
	return &Array{Data: data, Shape: []int{len(data)}}
}

// NDim returns the number of axes.
func (a *Array) NDim() int { return len(a.Shape) }

// Len returns the leading-axis extent, or 1 for a 0-dimensional array.
func (a *Array) Len() int {
	if len(a.Shape) == 0 {
		return 1
	}
	return a.Shape[0]
}

// Size returns the total element count.
func (a *Array) Size() int { return len(a.Data) }

// Equal reports element-wise and shape equality.
func (a *Array) Equal(b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Shape) != len(b.Shape) || len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			return false
		}
	}
	return true
}

func shapeSize(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// rowSize returns the element count of one leading-axis row.
func rowSize(shape []int) int {
	if len(shape) == 0 {
		return 1
	}
	return shapeSize(shape[1:])
}

// Timestamp is a point in time carried as a length-1 array of microseconds
// since the Unix epoch, plus the IANA zone name as side metadata. Microsecond
// resolution is what survives the float64 representation exactly.
type Timestamp struct {
	Time time.Time
	Zone string
}

// NewTimestamp captures t truncated to microseconds, with its zone name.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t.Truncate(time.Microsecond), Zone: t.Location().String()}
}

// Equal reports instant and zone-name equality.
func (ts *Timestamp) Equal(other *Timestamp) bool {
	if ts == nil || other == nil {
		return ts == other
	}
	return ts.Time.Equal(other.Time) && ts.Zone == other.Zone
}

// TimeIndex is an ordered series of instants sharing one zone, carried as an
// array of epoch microseconds plus the zone name as side metadata.
type TimeIndex struct {
	Times []time.Time
	Zone  string
}

// NewTimeIndex captures times truncated to microseconds. The zone name is
// taken from the first entry; an empty index defaults to UTC.
func NewTimeIndex(times ...time.Time) *TimeIndex {
	zone := "UTC"
	truncated := make([]time.Time, len(times))
	for i, t := range times {
		truncated[i] = t.Truncate(time.Microsecond)
	}
	if len(times) > 0 {
		zone = times[0].Location().String()
	}
	return &TimeIndex{Times: truncated, Zone: zone}
}

// Equal reports element-wise instant equality and zone-name equality.
func (ti *TimeIndex) Equal(other *TimeIndex) bool {
	if ti == nil || other == nil {
		return ti == other
	}
	if ti.Zone != other.Zone || len(ti.Times) != len(other.Times) {
		return false
	}
	for i := range ti.Times {
		if !ti.Times[i].Equal(other.Times[i]) {
			return false
		}
	}
	return true
}

func locationFor(zone string) (*time.Location, error) {
	if zone == "" || zone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(zone)
}

func init() {
	must := func(err error) {
		if err != nil {
			panic("strux: built-in dataset registration failed: " + err.Error())
		}
	}

	must(RegisterDataset(reflect.TypeOf((*Array)(nil)), &DatasetConverter{
		Name: ArrayTag,
		Disassemble: func(v any) ([]float64, map[string]any, error) {
			a := v.(*Array)
			if n := shapeSize(a.Shape); len(a.Shape) > 0 && n != len(a.Data) {
				return nil, nil, fmt.Errorf("%w: shape %v holds %d elements, buffer has %d",
					ErrShapeViolation, a.Shape, n, len(a.Data))
			}
			shape := a.Shape
			if shape == nil {
				// Keep 0-dimensional arrays distinguishable from datasets
				// that carry no shape metadata at all.
				shape = []int{}
			}
			return a.Data, map[string]any{"shape": shape}, nil
		},
		Assemble: func(data []float64, meta map[string]any) (any, error) {
			shape, err := toIntSlice(meta["shape"])
			if err != nil {
				return nil, fmt.Errorf("array shape metadata: %w", err)
			}
			return NewArray(data, shape...)
		},
	}))

	must(RegisterDataset(reflect.TypeOf((*Timestamp)(nil)), &DatasetConverter{
		Name: TimestampTag,
		Disassemble: func(v any) ([]float64, map[string]any, error) {
			ts := v.(*Timestamp)
			return []float64{float64(ts.Time.UnixMicro())}, map[string]any{"tz": ts.Zone}, nil
		},
		Assemble: func(data []float64, meta map[string]any) (any, error) {
			if len(data) != 1 {
				return nil, fmt.Errorf("%w: timestamp payload must hold exactly 1 element, got %d",
					ErrInvalidStructure, len(data))
			}
			zone, _ := meta["tz"].(string)
			loc, err := locationFor(zone)
			if err != nil {
				return nil, fmt.Errorf("timestamp zone %q: %w", zone, err)
			}
			return &Timestamp{Time: time.UnixMicro(int64(data[0])).In(loc), Zone: zone}, nil
		},
	}))

	must(RegisterDataset(reflect.TypeOf((*TimeIndex)(nil)), &DatasetConverter{
		Name: TimeIndexTag,
		Disassemble: func(v any) ([]float64, map[string]any, error) {
			ti := v.(*TimeIndex)
			data := make([]float64, len(ti.Times))
			for i, t := range ti.Times {
				data[i] = float64(t.UnixMicro())
			}
			return data, map[string]any{"tz": ti.Zone}, nil
		},
		Assemble: func(data []float64, meta map[string]any) (any, error) {
			zone, _ := meta["tz"].(string)
			loc, err := locationFor(zone)
			if err != nil {
				return nil, fmt.Errorf("time index zone %q: %w", zone, err)
			}
			times := make([]time.Time, len(data))
			for i, us := range data {
				times[i] = time.UnixMicro(int64(us)).In(loc)
			}
			return &TimeIndex{Times: times, Zone: zone}, nil
		},
	}))
}

// toIntSlice normalizes the numeric slice representations that shape metadata
// can take after a CBOR or structure round-trip.
func toIntSlice(v any) ([]int, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case []int:
		return s, nil
	case []any:
		out := make([]int, len(s))
		for i, e := range s {
			n, err := toInt(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case []int64:
		out := make([]int, len(s))
		for i, e := range s {
			out[i] = int(e)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: expected integer slice, got %T", ErrInvalidStructure, v)
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: expected integer, got %T", ErrInvalidStructure, v)
	}
}

// toFloat64Slice normalizes the payload representations dataset data can take
// after a structure round-trip.
func toFloat64Slice(v any) ([]float64, error) {
	switch s := v.(type) {
	case []float64:
		return s, nil
	case []any:
		out := make([]float64, len(s))
		for i, e := range s {
			switch n := e.(type) {
			case float64:
				out[i] = n
			case int64:
				out[i] = float64(n)
			case uint64:
				out[i] = float64(n)
			case int:
				out[i] = float64(n)
			default:
				return nil, fmt.Errorf("%w: expected numeric element, got %T", ErrInvalidStructure, e)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: expected numeric array, got %T", ErrInvalidStructure, v)
	}
}
