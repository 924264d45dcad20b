// Package resourcex defines the core types shared across the content-
// addressable resource registry: identifiers, definitions, manifests,
// archives and the resource triple that binds them.
//
// Resource
//
// A Resource is the central abstraction: an Identifier paired with a
// Manifest describing it and the Archive bytes of its file tree. Archives
// are addressed only by digest; a Resource is complete when its Identifier
// matches its Manifest's definition and its Archive's digest matches the
// Manifest's recorded archive digest.
//
// Manifest
//
// A Manifest carries a Definition (author-supplied metadata), an Archive
// section (packaging digests) and a Source section (a file tree preview).
// The StoredManifest is the form that lives in the manifest store: the
// Definition's fields plus a per-file digest map and timestamps, without
// the blob bytes themselves.
package resourcex
