// Package capability keeps the host's mirror of the render methods an engine
// supports.
//
// The published set is the engine's enumeration in engine order with every
// deny-listed name removed:
//
//	engine reports    [InstancedCube PointCloud Mesh]
//	deny-list         [InstancedCube]
//	SupportedTypes    [PointCloud Mesh]
//
// Engine failures are absorbed: unreadable entries are skipped, a failed
// count leaves the previous set in place, and DefaultType falls back to the
// first published type. The single exception is DefaultType with nothing to
// fall back on, which returns an errors.KindOutOfBounds error.
package capability
