package detect

import (
	"encoding/json"
	"strings"

	"github.com/resourcex/resourcex"
)

// ManifestDetector recognizes an explicit resource.json authoring file and
// takes priority over every heuristic detector.
type ManifestDetector struct{}

var _ Detector = ManifestDetector{}

const manifestFileName = "resource.json"

// authoredManifest is the on-disk shape of resource.json: the subset of
// Definition an author is expected to hand-write.
type authoredManifest struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Tag         string   `json:"tag"`
	Description string   `json:"description"`
	Author      string   `json:"author"`
	License     string   `json:"license"`
	Keywords    []string `json:"keywords"`
	Repository  string   `json:"repository"`
}

// Detect recognizes a resource.json file at the root of files.
func (ManifestDetector) Detect(files map[string][]byte, sourceHint string) (*DetectionResult, error) {
	raw, ok := files[manifestFileName]
	if !ok {
		return nil, nil
	}
	var m authoredManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, resourcex.Wrap(resourcex.KindUndetectable, "parse "+manifestFileName, err)
	}
	if m.Name == "" {
		return nil, resourcex.NewError(resourcex.KindUndetectable, manifestFileName+" is missing a name")
	}
	return &DetectionResult{
		Type:                m.Type,
		Name:                m.Name,
		Tag:                 m.Tag,
		Description:         m.Description,
		Author:              m.Author,
		License:             m.License,
		Keywords:            m.Keywords,
		Repository:          m.Repository,
		ExcludeFromContent:  []string{manifestFileName},
	}, nil
}

// SkillDetector recognizes the presence of a SKILL.md file and derives its
// name from the source directory basename and its description from the
// file's first Markdown heading.
type SkillDetector struct{}

var _ Detector = SkillDetector{}

const skillFileName = "SKILL.md"

// Detect recognizes a SKILL.md file at the root of files.
func (SkillDetector) Detect(files map[string][]byte, sourceHint string) (*DetectionResult, error) {
	content, ok := files[skillFileName]
	if !ok {
		return nil, nil
	}
	return &DetectionResult{
		Type:        "skill",
		Name:        baseName(sourceHint),
		Tag:         "latest",
		Description: firstHeading(string(content)),
	}, nil
}

// firstHeading returns the text of the first level-1 or level-2 Markdown
// heading in content, or "" if none is present.
func firstHeading(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		}
		if strings.HasPrefix(trimmed, "## ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "##"))
		}
	}
	return ""
}
