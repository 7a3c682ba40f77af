package strux

// Reserved keys inside a nested serialized structure. A mapping container must
// not use them as entry keys; the serializer rejects collisions.
const (
	// TypeTagKey marks a structure as a composite and carries the qualified
	// name used for registry resolution on deserialize.
	TypeTagKey = "__type__"

	// ContainerKindKey marks a structure as a container and carries its kind.
	ContainerKindKey = "__container__"

	// DatasetTagKey marks a structure as a disassembled dataset and carries
	// the dataset type's qualified tag.
	DatasetTagKey = "__dataset__"

	// DatasetDataKey holds the flat numeric array of a disassembled dataset.
	DatasetDataKey = "data"

	// SetItemsKey holds the serialized elements of a set container.
	SetItemsKey = "items"
)

// Container kinds written under ContainerKindKey and as store group
// discriminators.
const (
	KindSequence = "sequence"
	KindMapping  = "mapping"
	KindSet      = "set"
)

// Path is a filesystem path primitive. Paths round-trip through the store in
// the encoded string form "Path:<absolute-path>" so the type survives reload.
type Path string

// Set is an unordered container of comparable elements. Element order is not
// preserved across serialization.
type Set map[any]struct{}

// NewSet builds a Set from its arguments.
func NewSet(items ...any) Set {
	s := make(Set, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// Add inserts an element.
func (s Set) Add(item any) { s[item] = struct{}{} }

// Contains reports membership.
func (s Set) Contains(item any) bool {
	_, ok := s[item]
	return ok
}

// Category is a value's serialization category as decided by Classify.
type Category int

const (
	CategoryPrimitive Category = iota
	CategoryDataset
	CategoryContainer
	CategoryComposite
)

// String returns the category name used in diagnostics.
func (c Category) String() string {
	switch c {
	case CategoryPrimitive:
		return "primitive"
	case CategoryDataset:
		return "dataset"
	case CategoryContainer:
		return "container"
	case CategoryComposite:
		return "composite"
	default:
		return "unknown"
	}
}
