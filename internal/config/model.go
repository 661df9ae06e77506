package config

import (
	"path/filepath"
	"regexp"
	"strings"
)

// ModelSpec describes one inference model entry from models.json.
type ModelSpec struct {
	Name      string
	Type      string
	Weights   string
	Runner    string
	Width     int
	Height    int
	Device    string
	ClassFile string
}

type modelFile struct {
	Models []modelJSON `json:"models"`
}

type modelJSON struct {
	Name      string        `json:"name"`
	Type      string        `json:"type"`
	Weights   string        `json:"weights"`
	Runner    string        `json:"runner"`
	InputSize []interface{} `json:"inputSize"`
	Device    string        `json:"device"`
	ClassFile string        `json:"class_file"`
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases text and collapses every run of non-alphanumeric
// characters into a single underscore, trimming leading/trailing
// underscores.
func Slugify(text string) string {
	lower := strings.ToLower(text)
	slug := nonAlphanumeric.ReplaceAllString(lower, "_")
	return strings.Trim(slug, "_")
}

// MatchCandidates returns the set of lowercase/slug strings a camera's
// modelID may be matched against: the model name (lower and slugged),
// the weights file stem (lower and slugged), and the model type
// (lower). Order is insignificant; duplicates are harmless.
func (m ModelSpec) MatchCandidates() []string {
	var candidates []string
	if m.Name != "" {
		candidates = append(candidates, strings.ToLower(m.Name), Slugify(m.Name))
	}
	if m.Weights != "" {
		stem := strings.TrimSuffix(filepath.Base(m.Weights), filepath.Ext(m.Weights))
		candidates = append(candidates, strings.ToLower(stem), Slugify(stem))
	}
	if m.Type != "" {
		candidates = append(candidates, strings.ToLower(m.Type))
	}
	return candidates
}

// MatchModel finds the first model in models whose candidate set matches
// modelID by exact lowercase/slug equality or by prefix containment in
// either direction (the candidate starts with the slugified modelID,
// or the slugified modelID starts with the candidate). Models are
// tried in catalog order; the first match wins.
func MatchModel(modelID string, models []ModelSpec) (ModelSpec, bool) {
	targetSlug := Slugify(modelID)
	targetLower := strings.ToLower(modelID)
	for _, m := range models {
		for _, candidate := range m.MatchCandidates() {
			if candidate == "" {
				continue
			}
			if targetLower == candidate || targetSlug == candidate {
				return m, true
			}
			if strings.HasPrefix(candidate, targetSlug) || strings.HasPrefix(targetSlug, candidate) {
				return m, true
			}
		}
	}
	return ModelSpec{}, false
}
