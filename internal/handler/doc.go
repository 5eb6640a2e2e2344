// Package handler implements the HTTP API of the multimesh server.
//
// MeshHandler exposes format conversion and the mesh catalog:
//
//	GET    /api/formats
//	POST   /api/convert?from=medit&to=yaml
//	GET    /api/meshes
//	POST   /api/meshes?name=part&format=medit
//	GET    /api/meshes/{id}
//	DELETE /api/meshes/{id}
//	GET    /api/meshes/{id}/export?format=ply
//
// Mesh documents travel as raw request and response bodies. Everything else
// is JSON. Errors are returned as {error, details}: malformed or unsupported
// input maps to 400, a missing mesh to 404, anything else to 500.
//
// Recover, CORS and Logger are the middleware the server wraps around the
// mux with Chain.
package handler
