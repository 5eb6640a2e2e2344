// Package repository defines the data access interfaces for the mesh catalog.
//
// A catalog entry is a domain.MeshRecord plus the full group and entity
// contents of the mesh. Meshes go in through the pull protocol and come back
// out through the push protocol, so any domain.Target can be filled from
// storage without an intermediate copy. The implementation lives in the
// sqlite subpackage.
//
// # Testing
//
// The sqlite repository is tested against in-memory databases.
package repository
