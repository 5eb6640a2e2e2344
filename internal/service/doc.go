// Package service implements the conversion and catalog workflows.
//
// MeshService coordinates the codec registry and the mesh repository. Every
// parse goes into a fresh domain.Mesh that is owned by the call, so a
// service can serve concurrent requests without locking.
//
// # Event System
//
// Catalog changes and completed conversions are published on an EventBus.
// The HTTP layer relays them to clients via Server-Sent Events.
package service
