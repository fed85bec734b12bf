package archive

import (
	"path/filepath"
	"strings"

	"romcurator/internal/catalog"
)

// auxiliaryExts are companion files that describe content rather than being
// content: playlists, cue sheets, checksums, docs.
var auxiliaryExts = map[string]struct{}{
	".cue": {}, ".m3u": {}, ".gdi": {}, ".ccd": {}, ".sub": {},
	".txt": {}, ".nfo": {}, ".diz": {}, ".sfv": {}, ".md5": {},
	".dat": {}, ".xml": {}, ".jpg": {}, ".png": {}, ".pdf": {},
}

// discExts are optical-media images; they rank as playable content alongside
// ROMs but name the disc role.
var discExts = map[string]struct{}{
	".iso": {}, ".bin": {}, ".img": {}, ".chd": {}, ".cdi": {},
	".mdf": {}, ".nrg": {},
}

// patchExts are deltas applied on top of a base dump.
var patchExts = map[string]struct{}{
	".ips": {}, ".bps": {}, ".ups": {}, ".xdelta": {}, ".ppf": {},
}

// saveExts are emulator save data that travels with dumps.
var saveExts = map[string]struct{}{
	".sav": {}, ".srm": {}, ".eep": {}, ".fla": {}, ".mpk": {},
	".state": {},
}

// Classifier resolves content roles from extension registry rules, falling
// back to the container probe and the built-in auxiliary list.
type Classifier struct {
	rules map[string]catalog.ContentRole
}

// NewClassifier builds a Classifier over registry rules; rules win over the
// built-in defaults.
func NewClassifier(rules []catalog.ExtensionRule) *Classifier {
	m := make(map[string]catalog.ContentRole, len(rules))
	for _, rule := range rules {
		ext := strings.ToLower(rule.Ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		m[ext] = rule.Role
	}
	return &Classifier{rules: m}
}

// Role classifies one path.
func (c *Classifier) Role(path string) catalog.ContentRole {
	ext := strings.ToLower(filepath.Ext(path))
	if c != nil && c.rules != nil {
		if role, ok := c.rules[ext]; ok {
			return role
		}
	}
	if _, ok := Probe(path); ok {
		return catalog.RoleContainer
	}
	if _, ok := discExts[ext]; ok {
		return catalog.RoleDisc
	}
	if _, ok := patchExts[ext]; ok {
		return catalog.RolePatch
	}
	if _, ok := saveExts[ext]; ok {
		return catalog.RoleSave
	}
	if _, ok := auxiliaryExts[ext]; ok {
		return catalog.RoleAuxiliary
	}
	return catalog.RoleROM
}
