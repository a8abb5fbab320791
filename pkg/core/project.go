package core

import (
	"sort"
	"strings"
)

// ScoreStatistics summarizes the raw scores of a project.
type ScoreStatistics struct {
	Mean          float64 `json:"mean"`
	Median        float64 `json:"median"`
	StdDev        float64 `json:"std_dev"`
	ZScoreApplied bool    `json:"z_score_applied"`
}

// Project owns every model of an analysis run.
type Project struct {
	Name       string
	Models     map[string]*Model
	Statistics *ScoreStatistics
}

// NewProject creates a project and builds its dependency adjacency.
func NewProject(name string, models map[string]*Model) *Project {
	if models == nil {
		models = make(map[string]*Model)
	}
	p := &Project{Name: name, Models: models}
	p.BuildDAG()
	return p
}

// BuildDAG rebuilds the parent/child links of every model from its declared
// dependencies. Dependencies on unknown ids are ignored.
func (p *Project) BuildDAG() {
	for _, m := range p.Models {
		m.Parents = make(map[string]*Model)
		m.Children = make(map[string]*Model)
	}
	for _, m := range p.Models {
		for _, depID := range m.Dependencies {
			parent, ok := p.Models[depID]
			if !ok {
				continue
			}
			m.Parents[depID] = parent
			parent.Children[m.UniqueID] = m
		}
	}
}

// GetModel returns the model with the given unique id.
func (p *Project) GetModel(uniqueID string) (*Model, bool) {
	m, ok := p.Models[uniqueID]
	return m, ok
}

// FindModel resolves a unique id or, failing that, a model name
// (case-insensitive).
func (p *Project) FindModel(ref string) (*Model, bool) {
	if m, ok := p.Models[ref]; ok {
		return m, true
	}
	for _, id := range p.ModelIDs() {
		if strings.EqualFold(p.Models[id].Name, ref) {
			return p.Models[id], true
		}
	}
	return nil, false
}

// ModelIDs returns the unique ids of all models in sorted order.
func (p *Project) ModelIDs() []string {
	return sortedKeys(p.Models)
}

// DisplayScore returns the z-score of m when normalization was applied and
// its raw score otherwise.
func (p *Project) DisplayScore(m *Model) float64 {
	if p.Statistics != nil && p.Statistics.ZScoreApplied {
		return m.Score
	}
	return m.RawScore
}

// SortedByScore returns the models ordered by descending display score, ties
// broken by name.
func (p *Project) SortedByScore() []*Model {
	models := make([]*Model, 0, len(p.Models))
	for _, id := range p.ModelIDs() {
		models = append(models, p.Models[id])
	}
	sort.SliceStable(models, func(i, j int) bool {
		si, sj := p.DisplayScore(models[i]), p.DisplayScore(models[j])
		if si != sj {
			return si > sj
		}
		return models[i].Name < models[j].Name
	})
	return models
}

// EdgeCount returns the number of column lineage edges in the project.
func (p *Project) EdgeCount() int {
	n := 0
	for _, m := range p.Models {
		n += m.UpstreamColumnCount()
	}
	return n
}
