// Package domain defines the format-agnostic mesh interchange model.
//
// This package contains the entity, attribute and group types every mesh
// format speaks, the two protocols that decouple format drivers from mesh
// containers, and a ready-made container implementing both.
//
// # Core Types
//
// Attributes is an ordered AttrName → string store attached to every entity.
// An AttrName is either positional (Index) or nominal (Key); indices sort
// before keys.
//
// Entity is a closed set of mesh primitives: Node (position), Element (node
// indices), Vector (components) and Other (attributes only).
//
// GroupData names a kind-homogeneous run of entities. Its identity is the
// parsing UID assigned by the driving parser, never its name.
//
// # Naming
//
// Name validates a raw format keyword against a per-format, per-kind
// whitelist and keeps track of the format it originated in. Projection into a
// different format is unsupported.
//
// # Protocols
//
// Target is the push side: a format parser calls SetDimension, then for each
// group GroupBegin, one Add call per entity, and GroupEnd. Targets may
// implement NodeTarget, ElementTarget or VectorTarget to receive typed
// entities; the Deliver helpers fall back to AddEntity otherwise.
//
// Source is the pull side: a format writer asks for the groups of a kind and
// reads items by index. Every call to Groups starts a fresh traversal.
//
// # Mesh
//
// Mesh is a face-vertex container implementing Target and Source. It rejects
// entities addressed to a group that is not the currently open group of its
// kind, which is how protocol misuse by a parser surfaces as a
// BrokenInvariant error.
//
// # Design Principles
//
// - No database or external dependencies
// - Read accessors return owned copies
// - Single-pass, single-threaded mutation
package domain
