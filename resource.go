package resourcex

import "time"

// Identifier is a parsed locator, used as the key for store lookups. Tag
// participates in equality.
type Identifier struct {
	Registry string
	Path     string
	Name     string
	Tag      string
}

// Key returns the manifest-store key components for this identifier.
func (id Identifier) Key() (registry, name, tag string) {
	name = id.Name
	if id.Path != "" {
		name = id.Path + "/" + id.Name
	}
	return id.Registry, name, id.Tag
}

// Definition is the user-authored metadata for a resource.
type Definition struct {
	Registry    string   `json:"registry,omitempty"`
	Path        string   `json:"path,omitempty"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Tag         string   `json:"tag"`
	Description string   `json:"description,omitempty"`
	Author      string   `json:"author,omitempty"`
	License     string   `json:"license,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Repository  string   `json:"repository,omitempty"`
}

// Identifier derives the Identifier named by this definition.
func (d Definition) Identifier() Identifier {
	return Identifier{Registry: d.Registry, Path: d.Path, Name: d.Name, Tag: d.Tag}
}

// ArchiveSection carries packaging metadata: the archive digest and each
// file's individual digest. Reserved for future signatures.
type ArchiveSection struct {
	Digest string            `json:"digest"`
	Files  map[string]string `json:"files"`
}

// SourceFile describes one file of the resource's source tree as recorded
// in a Manifest's Source section.
type SourceFile struct {
	Size    int64  `json:"size"`
	Preview string `json:"preview,omitempty"`
}

// SourceSection is a short description of the resource's file tree,
// carried for display purposes only.
type SourceSection struct {
	Files map[string]SourceFile `json:"files,omitempty"`
}

// Manifest is the full stored metadata for a resource: its Definition plus
// archive and source sections.
type Manifest struct {
	Definition Definition    `json:"definition"`
	Archive    ArchiveSection `json:"archive"`
	Source     SourceSection `json:"source,omitempty"`
}

// StoredManifest is the form a manifest takes inside the manifest store:
// every Definition field, a filename -> digest map, and timestamps. It does
// not carry blob bytes.
type StoredManifest struct {
	Registry    string            `json:"registry,omitempty"`
	Path        string            `json:"path,omitempty"`
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Tag         string            `json:"tag"`
	Description string            `json:"description,omitempty"`
	Author      string            `json:"author,omitempty"`
	License     string            `json:"license,omitempty"`
	Keywords    []string          `json:"keywords,omitempty"`
	Repository  string            `json:"repository,omitempty"`
	Files       map[string]string `json:"files"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Definition projects the RXD-shaped fields back out of a stored manifest.
func (m StoredManifest) Definition() Definition {
	return Definition{
		Registry:    m.Registry,
		Path:        m.Path,
		Name:        m.Name,
		Type:        m.Type,
		Tag:         m.Tag,
		Description: m.Description,
		Author:      m.Author,
		License:     m.License,
		Keywords:    m.Keywords,
		Repository:  m.Repository,
	}
}

// Identifier derives the Identifier named by this stored manifest.
func (m StoredManifest) Identifier() Identifier {
	return Identifier{Registry: m.Registry, Path: m.Path, Name: m.Name, Tag: m.Tag}
}

// Resource is the triple {identifier, manifest, archive}.
type Resource struct {
	Identifier Identifier
	Manifest   Manifest
	Archive    []byte
}
