// Package detect implements the source loader and type detector chains:
// turning an opaque source reference into files, then turning files into
// a validated definition.
package detect

import (
	"path"
	"strings"
	"time"

	"github.com/resourcex/resourcex"
	"github.com/resourcex/resourcex/archive"
	"github.com/resourcex/resourcex/rxcontext"
)

// LoadedSource is the output of a Loader: the resolved source string and
// its file tree.
type LoadedSource struct {
	Source string
	Files  map[string][]byte
}

// Loader knows how to turn one kind of source reference into files.
type Loader interface {
	// CanLoad reports whether this loader handles source.
	CanLoad(source string) bool

	// Load fetches source's files.
	Load(ctx rxcontext.Context, source string) (LoadedSource, error)

	// IsFresh reports whether source has changed since cachedAt. Loaders
	// that cannot cheaply check freshness may always return true.
	IsFresh(ctx rxcontext.Context, source string, cachedAt time.Time) (bool, error)
}

// DetectionResult is what a Detector finds in a file set.
type DetectionResult struct {
	Type               string
	Name               string
	Tag                string
	Description        string
	Author             string
	License            string
	Keywords           []string
	Repository         string
	ExcludeFromContent []string
}

// Detector inspects a loaded file set and either recognizes it or declines.
// A nil, nil return means "no match, try the next detector".
type Detector interface {
	Detect(files map[string][]byte, sourceHint string) (*DetectionResult, error)
}

// LoaderChain tries each Loader in order; the first that CanLoad wins.
type LoaderChain []Loader

// Load finds the first loader in the chain that can handle source and
// delegates to it. Fails with KindNoLoader if none matches.
func (c LoaderChain) Load(ctx rxcontext.Context, source string) (LoadedSource, error) {
	for _, loader := range c {
		if loader.CanLoad(source) {
			return loader.Load(ctx, source)
		}
	}
	return LoadedSource{}, resourcex.NewError(resourcex.KindNoLoader, "no loader can handle source "+source)
}

// IsFresh consults the loader that would handle source.
func (c LoaderChain) IsFresh(ctx rxcontext.Context, source string, cachedAt time.Time) (bool, error) {
	for _, loader := range c {
		if loader.CanLoad(source) {
			return loader.IsFresh(ctx, source, cachedAt)
		}
	}
	return false, resourcex.NewError(resourcex.KindNoLoader, "no loader can handle source "+source)
}

// DetectorChain tries each Detector in order; the first non-nil result
// wins.
type DetectorChain []Detector

// Detect runs the chain against files, returning the first match. Fails
// with KindUndetectable if none matches.
func (c DetectorChain) Detect(files map[string][]byte, sourceHint string) (*DetectionResult, error) {
	for _, d := range c {
		result, err := d.Detect(files, sourceHint)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, resourcex.NewError(resourcex.KindUndetectable, "no detector recognized the source at "+sourceHint)
}

// ResolveSource runs the full pipeline: load, detect, build a manifest,
// drop excluded files, and pack the remainder into an archive.
func ResolveSource(ctx rxcontext.Context, loaders LoaderChain, detectors DetectorChain, source string) (resourcex.Resource, error) {
	loaded, err := loaders.Load(ctx, source)
	if err != nil {
		return resourcex.Resource{}, err
	}

	result, err := detectors.Detect(loaded.Files, loaded.Source)
	if err != nil {
		return resourcex.Resource{}, err
	}

	def := resourcex.Definition{
		Name:        result.Name,
		Type:        result.Type,
		Tag:         result.Tag,
		Description: result.Description,
		Author:      result.Author,
		License:     result.License,
		Keywords:    result.Keywords,
		Repository:  result.Repository,
	}
	if def.Tag == "" {
		def.Tag = "latest"
	}

	excluded := make(map[string]bool, len(result.ExcludeFromContent))
	for _, name := range result.ExcludeFromContent {
		excluded[name] = true
	}
	content := make(map[string][]byte, len(loaded.Files))
	sourceFiles := make(map[string]resourcex.SourceFile, len(loaded.Files))
	for name, bytes := range loaded.Files {
		sourceFiles[name] = resourcex.SourceFile{Size: int64(len(bytes)), Preview: preview(bytes)}
		if excluded[name] {
			continue
		}
		content[name] = bytes
	}

	packed, err := archive.Pack(content)
	if err != nil {
		return resourcex.Resource{}, err
	}

	fileDigests := make(map[string]string, len(content))
	for name, bytes := range content {
		fileDigests[name] = archive.DigestFile(bytes)
	}

	return resourcex.Resource{
		Identifier: def.Identifier(),
		Manifest: resourcex.Manifest{
			Definition: def,
			Archive: resourcex.ArchiveSection{
				Digest: archive.DigestArchive(fileDigests),
				Files:  fileDigests,
			},
			Source: resourcex.SourceSection{Files: sourceFiles},
		},
		Archive: packed,
	}, nil
}

const previewLength = 200

func preview(content []byte) string {
	if len(content) > previewLength {
		content = content[:previewLength]
	}
	return string(content)
}

// baseName returns the final path segment, the way a folder loader derives
// a resource's default name from its directory.
func baseName(p string) string {
	return path.Base(strings.TrimRight(p, "/"))
}
