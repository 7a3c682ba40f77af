// Package strux is a generic object-graph serialization and persistence core.
//
// It converts typed object instances into a portable nested structure and
// symmetrically reconstructs them, including recursive save and load into a
// hierarchical on-disk store organized as named groups, scalar attributes,
// and binary array leaves.
//
// # Type model
//
// Composite types are defined as TypeSpec descriptors holding named Slot
// definitions and registered under a globally unique qualified name:
//
//	var sensorSpec = strux.MustTypeSpec("telemetry.Sensor",
//		strux.NewSlot("name").WithDefault(""),
//		strux.NewSlot("unit").WithDefault("V").WriteOnce(),
//		strux.NewSlot("samples").WithFactory(func(*strux.Object) any {
//			return strux.Vector()
//		}),
//	)
//
//	func init() { strux.RegisterComposite(sensorSpec) }
//
// Slots support static or per-instance factory defaults, assignment parsers,
// change observers, write-once enforcement, lazy post-initializers, and a
// copiable flag controlling participation in copy operations. All slot
// configuration methods are non-mutating builders, so a base definition can
// serve as a template.
//
// # Serialization
//
// Serialize classifies every value it meets: primitives pass through,
// registered dataset types disassemble into a flat numeric array plus side
// metadata, containers recurse per element, and composites become mappings of
// slot name to serialized value carrying a type tag. Deserialize inverts the
// walk, resolving type tags through the process-wide registry. Cyclic object
// graphs are unsupported and are not detected.
//
// # Persistence
//
// Open returns a scoped Session over a store file, under one of four modes
// mirroring standard file-open semantics. Session.Save maps the nested
// structure onto the store; Session.Load materializes everything eagerly,
// while Session.LoadLazy hands out ArrayProxy handles that read, write, and
// append dataset rows in place without loading whole arrays. Only the leading
// axis of a dataset can grow.
//
// The registries carry no internal locking: perform all registration during
// single-threaded startup, before any concurrent read begins. A session holds
// its store file exclusively for its lifetime; no cross-process locking is
// provided.
package strux
