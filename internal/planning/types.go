// Package planning turns cross-repository dependency facts into a migration plan.
package planning

// RawRecord is an untyped fact record as returned by a collaborator.
// Only the normalizer reads these.
type RawRecord map[string]any

// Edge is a directed dependency between two repositories.
type Edge struct {
	FromRepo string   `json:"from_repo" yaml:"from_repo"`
	ToRepo   string   `json:"to_repo" yaml:"to_repo"`
	Weight   float64  `json:"weight" yaml:"weight"`
	Types    []string `json:"types" yaml:"types"`
}

// Artifact is a resource (table, config value, queue...) referenced by
// two or more repositories.
type Artifact struct {
	Name  string   `json:"artifact_name" yaml:"artifact_name"`
	Repos []string `json:"repos" yaml:"repos"`
	Type  string   `json:"type" yaml:"type"`
}

// Category names a counted component kind.
type Category string

const (
	CategoryActions       Category = "actions"
	CategoryForms         Category = "forms"
	CategoryPageTemplates Category = "page_templates"
	CategoryServices      Category = "services"
	CategoryInterfaces    Category = "interfaces"
	CategoryDataModels    Category = "data_models"
)

// Categories lists every counted category in reporting order.
var Categories = []Category{
	CategoryActions,
	CategoryForms,
	CategoryPageTemplates,
	CategoryServices,
	CategoryInterfaces,
	CategoryDataModels,
}

// Totals holds per-category component counts. Every field is >= 0.
type Totals struct {
	Actions       int `json:"actions" yaml:"actions"`
	Forms         int `json:"forms" yaml:"forms"`
	PageTemplates int `json:"page_templates" yaml:"page_templates"`
	Services      int `json:"services" yaml:"services"`
	Interfaces    int `json:"interfaces" yaml:"interfaces"`
	DataModels    int `json:"data_models" yaml:"data_models"`
}

// Severity grades a hotspot.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// HotspotKind tells what a hotspot points at.
type HotspotKind string

const (
	HotspotDependency HotspotKind = "dependency"
	HotspotArtifact   HotspotKind = "shared_artifact"
)

// Hotspot is a high-impact edge or shared artifact.
type Hotspot struct {
	Kind     HotspotKind `json:"kind" yaml:"kind"`
	Label    string      `json:"label" yaml:"label"`
	Repos    []string    `json:"repos" yaml:"repos"`
	Severity Severity    `json:"severity" yaml:"severity"`
	Reason   string      `json:"reason" yaml:"reason"`
	Score    float64     `json:"score" yaml:"score"`
}

// Slice is a connected group of repositories migrated as one unit.
type Slice struct {
	Name         string   `json:"name" yaml:"name"`
	Repos        []string `json:"repos" yaml:"repos"`
	Features     []string `json:"features" yaml:"features"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
	Effort       int      `json:"effort" yaml:"effort"`
	Risk         int      `json:"risk" yaml:"risk"`
	Rationale    string   `json:"rationale" yaml:"rationale"`
}

// Entity is an inferred domain entity used to suggest API types.
type Entity struct {
	Name   string        `json:"name" yaml:"name"`
	Fields []EntityField `json:"fields" yaml:"fields"`
}

// EntityField is a single named, typed attribute of an Entity.
type EntityField struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// Plan is the full planning output. Field names and nesting are a
// compatibility contract shared by the CLI and the HTTP server.
type Plan struct {
	Scope       Scope       `json:"plan_scope" yaml:"plan_scope"`
	Summary     Summary     `json:"summary" yaml:"summary"`
	CrossRepo   CrossRepo   `json:"cross_repo" yaml:"cross_repo"`
	Slices      Slices      `json:"slices" yaml:"slices"`
	GraphQL     GraphQL     `json:"graphql" yaml:"graphql"`
	Roadmap     Roadmap     `json:"roadmap" yaml:"roadmap"`
	Diagnostics Diagnostics `json:"diagnostics" yaml:"diagnostics"`
}

type Scope struct {
	Repositories []string `json:"repositories" yaml:"repositories"`
	Coverage     Coverage `json:"coverage" yaml:"coverage"`
}

type Coverage struct {
	IndexedCount int `json:"indexed_count" yaml:"indexed_count"`
	TotalRepos   int `json:"total_repos" yaml:"total_repos"`
}

type Summary struct {
	Totals      Totals     `json:"totals" yaml:"totals"`
	Complexity  Complexity `json:"complexity" yaml:"complexity"`
	RiskScore   float64    `json:"risk_score" yaml:"risk_score"`
	EffortScore float64    `json:"effort_score" yaml:"effort_score"`
}

type Complexity struct {
	CouplingIndex float64 `json:"coupling_index" yaml:"coupling_index"`
	Hotspots      int     `json:"hotspots" yaml:"hotspots"`
	AvgCyclomatic float64 `json:"avg_cyclomatic" yaml:"avg_cyclomatic"`
}

type CrossRepo struct {
	Dependencies    []Edge     `json:"dependencies" yaml:"dependencies"`
	SharedArtifacts []Artifact `json:"shared_artifacts" yaml:"shared_artifacts"`
	Hotspots        []Hotspot  `json:"hotspots" yaml:"hotspots"`
}

type Slices struct {
	Items    []Slice  `json:"items" yaml:"items"`
	Sequence []string `json:"sequence" yaml:"sequence"`
}

type GraphQL struct {
	RecommendedTypes     []string `json:"recommended_types" yaml:"recommended_types"`
	RecommendedQueries   []string `json:"recommended_queries" yaml:"recommended_queries"`
	RecommendedMutations []string `json:"recommended_mutations" yaml:"recommended_mutations"`
	SDLPreview           string   `json:"sdl_preview" yaml:"sdl_preview"`
	Notes                []string `json:"notes" yaml:"notes"`
}

type Roadmap struct {
	Phases []Phase `json:"phases" yaml:"phases"`
	Steps  []Step  `json:"steps" yaml:"steps"`
}

// Phase is one stage of the migration roadmap.
type Phase struct {
	Name         string   `json:"name" yaml:"name"`
	Goals        []string `json:"goals" yaml:"goals"`
	ExitCriteria []string `json:"exit_criteria" yaml:"exit_criteria"`
}

// Step schedules one slice into a roadmap phase.
type Step struct {
	Order int      `json:"order" yaml:"order"`
	Slice string   `json:"slice" yaml:"slice"`
	Repos []string `json:"repos" yaml:"repos"`
	Phase string   `json:"phase" yaml:"phase"`
}

type Diagnostics struct {
	DataSources DataSources `json:"data_sources" yaml:"data_sources"`
	Degraded    []string    `json:"degraded" yaml:"degraded"`
	GeneratedAt string      `json:"generated_at" yaml:"generated_at"`
}

// DataSources reports which collaborators answered during the run.
type DataSources struct {
	Graph    bool `json:"graph" yaml:"graph"`
	Entities bool `json:"entities" yaml:"entities"`
}
