// Package executor defines the resolver executor contract: the
// boundary between the core registry, which only ever deals in bytes, and
// whatever runs a resource's files (an in-process interpreter, a sandboxed
// subprocess, a remote microVM). The core supplies exactly the file bytes
// that were put and the manifest's declared type; it never prescribes how
// execution happens.
package executor

import (
	"github.com/resourcex/resourcex"
	"github.com/resourcex/resourcex/archive"
	"github.com/resourcex/resourcex/rxcontext"
)

// Executor runs a resolved resource against caller-supplied arguments and
// returns its result.
type Executor interface {
	Execute(ctx rxcontext.Context, resourceType string, files map[string][]byte, args map[string]any) (any, error)
}

// Run extracts res's archive, verifies it against the manifest's recorded
// digest, and hands the files to exec. A digest mismatch is reported as
// CorruptState before exec ever runs, per the executor contract.
func Run(ctx rxcontext.Context, exec Executor, res resourcex.Resource, args map[string]any) (any, error) {
	files, err := archive.Unpack(res.Archive)
	if err != nil {
		return nil, err
	}

	fileDigests := make(map[string]string, len(files))
	for name, content := range files {
		fileDigests[name] = archive.DigestFile(content)
	}
	if archive.DigestArchive(fileDigests) != res.Manifest.Archive.Digest {
		return nil, resourcex.NewError(resourcex.KindCorruptState, "archive contents do not match the recorded digest for "+res.Identifier.Name)
	}

	rxcontext.GetLogger(ctx).Debug("executor.Run " + res.Identifier.Name)
	return exec.Execute(ctx, res.Manifest.Definition.Type, files, args)
}
