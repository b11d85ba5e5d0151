/*
seed.go - YAML fixtures for demos and local setup

PURPOSE:
  Populates a store from a YAML document: clients with their contacts,
  engineers, projects, allocations, and scenarios with change logs. The
  embedded demo.yaml backs POST /api/demo/load; the CLI's "seed" command
  loads any file in the same format.

REFERENCES BY NAME:
  Ids are assigned by the store, so the document refers to entities by
  name. Scenario change payloads may use these keys in place of ids:

    engineer:   <engineer name>    -> engineer_id
    project:    <project name>     -> project_id
    client:     <client name>      -> client_id
    allocation: <allocation ref>   -> allocation_id

  Allocations get a "ref" for this purpose. Everything else in a payload
  is passed through unchanged and validated like any other change.

ORDER:
  Entities are created in dependency order; the first failure stops the
  load. Callers that want a clean slate reset the store first.

SEE ALSO:
  - demo.yaml: The demo fixture
  - factory/change.go: Payload schema
*/
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/scenario"
	"github.com/warp/staffing-engine/staffing"
	"gopkg.in/yaml.v3"
)

//go:embed demo.yaml
var demoYAML []byte

// =============================================================================
// DOCUMENT
// =============================================================================

type Document struct {
	Clients     []Client     `yaml:"clients"`
	Engineers   []Engineer   `yaml:"engineers"`
	Projects    []Project    `yaml:"projects"`
	Allocations []Allocation `yaml:"allocations"`
	Scenarios   []Scenario   `yaml:"scenarios"`
}

type Client struct {
	Name     string    `yaml:"name"`
	Contacts []Contact `yaml:"contacts"`
}

type Contact struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Phone string `yaml:"phone"`
}

type Engineer struct {
	Name    string  `yaml:"name"`
	Level   int     `yaml:"level"`
	DayRate *string `yaml:"day_rate"`
	Cohort  int     `yaml:"cohort"` // 0 means cohort 1
	Active  *bool   `yaml:"active"` // nil means active
}

type Project struct {
	Name       string        `yaml:"name"`
	Client     string        `yaml:"client"`
	Start      generic.Date  `yaml:"start_date"`
	End        *generic.Date `yaml:"end_date"`
	AgreedRate *string       `yaml:"agreed_rate"`
	Status     string        `yaml:"status"`
}

type Allocation struct {
	Ref      string        `yaml:"ref"`
	Engineer string        `yaml:"engineer"`
	Project  string        `yaml:"project"`
	Start    generic.Date  `yaml:"start_date"`
	End      *generic.Date `yaml:"end_date"`
	Status   string        `yaml:"status"`
}

type Scenario struct {
	Name    string   `yaml:"name"`
	Changes []Change `yaml:"changes"`
}

type Change struct {
	Kind    string         `yaml:"kind"`
	Payload map[string]any `yaml:"payload"`
}

// Parse decodes a YAML document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed document: %w", err)
	}
	return &doc, nil
}

// Demo returns the embedded demo document.
func Demo() (*Document, error) {
	return Parse(demoYAML)
}

// =============================================================================
// LOADING
// =============================================================================

// Store is the subset of the persistence layer a load writes through.
type Store interface {
	CreateClient(ctx context.Context, name string) (staffing.Client, error)
	CreateContact(ctx context.Context, c staffing.Contact) (staffing.Contact, error)
	CreateEngineer(ctx context.Context, e staffing.Engineer) (staffing.Engineer, error)
	CreateProject(ctx context.Context, p staffing.Project) (staffing.Project, error)
	CreateAllocation(ctx context.Context, a staffing.Allocation) (staffing.Allocation, error)
	CreateScenario(ctx context.Context, name string) (staffing.Scenario, error)
}

// ChangeAppender validates and records scenario changes.
type ChangeAppender interface {
	AppendChange(ctx context.Context, scenarioID int64, kind scenario.Kind, payload json.RawMessage, key string) (generic.ChangeRecord, error)
}

// Summary counts what a load created.
type Summary struct {
	Clients     int `json:"clients"`
	Contacts    int `json:"contacts"`
	Engineers   int `json:"engineers"`
	Projects    int `json:"projects"`
	Allocations int `json:"allocations"`
	Scenarios   int `json:"scenarios"`
	Changes     int `json:"changes"`
}

type loader struct {
	store   Store
	changes ChangeAppender
	sum     Summary

	clients     map[string]int64
	engineers   map[string]int64
	projects    map[string]int64
	allocations map[string]int64
}

// Load creates every entity of doc, then replays its scenarios through
// changes.
func Load(ctx context.Context, store Store, changes ChangeAppender, doc *Document) (Summary, error) {
	l := &loader{
		store:       store,
		changes:     changes,
		clients:     make(map[string]int64),
		engineers:   make(map[string]int64),
		projects:    make(map[string]int64),
		allocations: make(map[string]int64),
	}
	steps := []func(context.Context, *Document) error{
		l.loadClients,
		l.loadEngineers,
		l.loadProjects,
		l.loadAllocations,
		l.loadScenarios,
	}
	for _, step := range steps {
		if err := step(ctx, doc); err != nil {
			return l.sum, err
		}
	}
	return l.sum, nil
}

func (l *loader) loadClients(ctx context.Context, doc *Document) error {
	for _, c := range doc.Clients {
		client, err := l.store.CreateClient(ctx, c.Name)
		if err != nil {
			return fmt.Errorf("client %q: %w", c.Name, err)
		}
		l.clients[c.Name] = client.ID
		l.sum.Clients++
		for _, ct := range c.Contacts {
			_, err := l.store.CreateContact(ctx, staffing.Contact{
				ClientID: client.ID,
				Name:     ct.Name,
				Email:    ct.Email,
				Phone:    ct.Phone,
			})
			if err != nil {
				return fmt.Errorf("contact %q of %q: %w", ct.Name, c.Name, err)
			}
			l.sum.Contacts++
		}
	}
	return nil
}

func (l *loader) loadEngineers(ctx context.Context, doc *Document) error {
	for _, e := range doc.Engineers {
		rate, err := parseRate(e.DayRate)
		if err != nil {
			return fmt.Errorf("engineer %q: %w", e.Name, err)
		}
		cohort := e.Cohort
		if cohort == 0 {
			cohort = 1
		}
		eng, err := l.store.CreateEngineer(ctx, staffing.Engineer{
			Name:    e.Name,
			Level:   e.Level,
			DayRate: rate,
			Cohort:  cohort,
			Active:  e.Active == nil || *e.Active,
		})
		if err != nil {
			return fmt.Errorf("engineer %q: %w", e.Name, err)
		}
		l.engineers[e.Name] = eng.ID
		l.sum.Engineers++
	}
	return nil
}

func (l *loader) loadProjects(ctx context.Context, doc *Document) error {
	for _, p := range doc.Projects {
		if _, dup := l.projects[p.Name]; dup {
			return fmt.Errorf("project %q defined twice: %w", p.Name, generic.ErrDuplicateName)
		}
		clientID, err := lookup(l.clients, "client", p.Client)
		if err != nil {
			return fmt.Errorf("project %q: %w", p.Name, err)
		}
		rate, err := parseRate(p.AgreedRate)
		if err != nil {
			return fmt.Errorf("project %q: %w", p.Name, err)
		}
		proj, err := l.store.CreateProject(ctx, staffing.Project{
			ClientID:   clientID,
			Name:       p.Name,
			Start:      p.Start,
			End:        p.End,
			AgreedRate: rate,
			Status:     staffing.Status(p.Status),
		})
		if err != nil {
			return fmt.Errorf("project %q: %w", p.Name, err)
		}
		l.projects[p.Name] = proj.ID
		l.sum.Projects++
	}
	return nil
}

func (l *loader) loadAllocations(ctx context.Context, doc *Document) error {
	for i, a := range doc.Allocations {
		engineerID, err := lookup(l.engineers, "engineer", a.Engineer)
		if err != nil {
			return fmt.Errorf("allocation %d: %w", i+1, err)
		}
		projectID, err := lookup(l.projects, "project", a.Project)
		if err != nil {
			return fmt.Errorf("allocation %d: %w", i+1, err)
		}
		alloc, err := l.store.CreateAllocation(ctx, staffing.Allocation{
			EngineerID: engineerID,
			ProjectID:  projectID,
			Start:      a.Start,
			End:        a.End,
			Status:     staffing.Status(a.Status),
		})
		if err != nil {
			return fmt.Errorf("allocation %d (%s on %s): %w", i+1, a.Engineer, a.Project, err)
		}
		if a.Ref != "" {
			l.allocations[a.Ref] = alloc.ID
		}
		l.sum.Allocations++
	}
	return nil
}

func (l *loader) loadScenarios(ctx context.Context, doc *Document) error {
	for _, s := range doc.Scenarios {
		sc, err := l.store.CreateScenario(ctx, s.Name)
		if err != nil {
			return fmt.Errorf("scenario %q: %w", s.Name, err)
		}
		l.sum.Scenarios++
		for i, ch := range s.Changes {
			payload, err := l.resolve(ch.Payload)
			if err != nil {
				return fmt.Errorf("scenario %q change %d: %w", s.Name, i+1, err)
			}
			if _, err := l.changes.AppendChange(ctx, sc.ID, scenario.Kind(ch.Kind), payload, ""); err != nil {
				return fmt.Errorf("scenario %q change %d: %w", s.Name, i+1, err)
			}
			l.sum.Changes++
		}
	}
	return nil
}

// resolve swaps name references for ids and encodes the payload.
func (l *loader) resolve(payload map[string]any) (json.RawMessage, error) {
	refs := []struct {
		key, field, entity string
		ids                map[string]int64
	}{
		{"engineer", "engineer_id", "engineer", l.engineers},
		{"project", "project_id", "project", l.projects},
		{"client", "client_id", "client", l.clients},
		{"allocation", "allocation_id", "allocation ref", l.allocations},
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	for _, ref := range refs {
		v, ok := out[ref.key]
		if !ok {
			continue
		}
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a name: %w", ref.key, generic.ErrInvalidInput)
		}
		id, err := lookup(ref.ids, ref.entity, name)
		if err != nil {
			return nil, err
		}
		delete(out, ref.key)
		out[ref.field] = id
	}
	return json.Marshal(out)
}

func lookup(ids map[string]int64, entity, name string) (int64, error) {
	id, ok := ids[name]
	if !ok {
		return 0, fmt.Errorf("unknown %s %q: %w", entity, name, generic.ErrEntityNotFound)
	}
	return id, nil
}

func parseRate(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("rate %q: %w", *s, generic.ErrInvalidInput)
	}
	return &d, nil
}
