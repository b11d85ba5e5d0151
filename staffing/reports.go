package staffing

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/staffing-engine/generic"
	"golang.org/x/text/cases"
)

// =============================================================================
// POINT-IN-TIME LISTINGS
// =============================================================================
// Flat, non-hierarchical views at a reference date. The provisional filter
// follows the rollup: an allocation counts only if both it and its project
// are confirmed, and project listings drop provisional projects.

// AllocationView is an allocation joined with its names and rate.
type AllocationView struct {
	Allocation
	EngineerName  string
	ProjectName   string
	ClientName    string
	ProjectStatus Status
	Rate          *decimal.Decimal
}

// ProjectView is a project joined with its client name.
type ProjectView struct {
	Project
	ClientName string
}

// ProjectEndingDetail is a ProjectView with its allocations and billing.
type ProjectEndingDetail struct {
	ProjectView
	Allocations []string // AllocationLabel of each counted allocation
	ToDate      decimal.Decimal
	Total       decimal.Decimal
}

// RevenueLine is one line of a revenue-by-X report, rounded once.
type RevenueLine struct {
	ID     int64
	Name   string
	ToDate decimal.Decimal
	Total  decimal.Decimal
}

// Unallocated lists active engineers with no current allocation at asOf.
func Unallocated(ds *Dataset, asOf generic.Date, includeProvisional bool) []Engineer {
	ix := ds.Index()
	busy := make(map[int64]bool)
	for _, a := range ds.Allocations {
		if _, ok := ix.visible(a, includeProvisional); !ok {
			continue
		}
		if a.CurrentAt(asOf) {
			busy[a.EngineerID] = true
		}
	}

	var out []Engineer
	for _, e := range ds.Engineers {
		if e.Active && !busy[e.ID] {
			out = append(out, e)
		}
	}
	fold := cases.Fold()
	sort.SliceStable(out, func(i, j int) bool {
		return fold.String(out[i].Name) < fold.String(out[j].Name)
	})
	return out
}

// CurrentAllocations lists allocations current at asOf, by engineer name.
func CurrentAllocations(ds *Dataset, asOf generic.Date, includeProvisional bool) []AllocationView {
	ix := ds.Index()
	var out []AllocationView
	for _, a := range ds.Allocations {
		p, ok := ix.visible(a, includeProvisional)
		if !ok || !a.CurrentAt(asOf) {
			continue
		}
		e, ok := ix.Engineers[a.EngineerID]
		if !ok {
			continue
		}
		c, ok := ix.Clients[p.ClientID]
		if !ok {
			continue
		}
		out = append(out, AllocationView{
			Allocation:    a,
			EngineerName:  e.Name,
			ProjectName:   p.Name,
			ClientName:    c.Name,
			ProjectStatus: p.Status,
			Rate:          ix.EffectiveRate(a),
		})
	}
	fold := cases.Fold()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := fold.String(out[i].EngineerName), fold.String(out[j].EngineerName)
		if a != b {
			return a < b
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// ProjectsEndingSoon lists projects with asOf <= end <= asOf+withinDays,
// earliest end first.
func ProjectsEndingSoon(ds *Dataset, asOf generic.Date, withinDays int, includeProvisional bool) []ProjectView {
	ix := ds.Index()
	endBy := asOf.AddDays(withinDays)
	var out []ProjectView
	for _, p := range ds.Projects {
		if p.End == nil || p.End.Before(asOf) || p.End.After(endBy) {
			continue
		}
		if !includeProvisional && p.Provisional() {
			continue
		}
		c, ok := ix.Clients[p.ClientID]
		if !ok {
			continue
		}
		out = append(out, ProjectView{Project: p, ClientName: c.Name})
	}
	fold := cases.Fold()
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].End.Equal(*out[j].End) {
			return out[i].End.Before(*out[j].End)
		}
		return fold.String(out[i].Name) < fold.String(out[j].Name)
	})
	return out
}

// ProjectsEndingWithDetails extends ProjectsEndingSoon with each project's
// allocation labels and its billing at asOf.
func ProjectsEndingWithDetails(ds *Dataset, asOf generic.Date, withinDays int, includeProvisional bool) []ProjectEndingDetail {
	ix := ds.Index()
	ending := ProjectsEndingSoon(ds, asOf, withinDays, includeProvisional)
	byProject := make(map[int64][]Allocation)
	for _, a := range ds.Allocations {
		byProject[a.ProjectID] = append(byProject[a.ProjectID], a)
	}

	out := make([]ProjectEndingDetail, 0, len(ending))
	for _, pv := range ending {
		allocs := byProject[pv.ID]
		sort.SliceStable(allocs, func(i, j int) bool { return allocs[i].Start.Before(allocs[j].Start) })

		d := ProjectEndingDetail{ProjectView: pv, ToDate: decimal.Zero, Total: decimal.Zero}
		for _, a := range allocs {
			if !includeProvisional && a.Provisional() {
				continue
			}
			name := ""
			if e, ok := ix.Engineers[a.EngineerID]; ok {
				name = e.Name
			}
			d.Allocations = append(d.Allocations, AllocationLabel(name, a))
			toDate, total := Revenue(a.Start, a.End, ix.EffectiveRate(a), asOf)
			d.ToDate = d.ToDate.Add(toDate)
			d.Total = d.Total.Add(total)
		}
		d.ToDate = generic.Round(d.ToDate)
		d.Total = generic.Round(d.Total)
		out = append(out, d)
	}
	return out
}

// ProjectsWithoutAllocations lists projects that have no allocation at
// all, earliest start first.
func ProjectsWithoutAllocations(ds *Dataset, includeProvisional bool) []ProjectView {
	ix := ds.Index()
	staffed := make(map[int64]bool)
	for _, a := range ds.Allocations {
		staffed[a.ProjectID] = true
	}
	var out []ProjectView
	for _, p := range ds.Projects {
		if staffed[p.ID] || (!includeProvisional && p.Provisional()) {
			continue
		}
		c, ok := ix.Clients[p.ClientID]
		if !ok {
			continue
		}
		out = append(out, ProjectView{Project: p, ClientName: c.Name})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// =============================================================================
// REVENUE BY PROJECT / CLIENT / ENGINEER
// =============================================================================

// revenueBy accumulates visible allocation revenue at asOf into one line
// per key. Every seeded key is reported, billed or not.
func revenueBy(ds *Dataset, asOf generic.Date, includeProvisional bool, seed []RevenueLine, key func(Allocation, *Project) int64) []RevenueLine {
	ix := ds.Index()
	lines := make(map[int64]*RevenueLine, len(seed))
	for i := range seed {
		seed[i].ToDate = decimal.Zero
		seed[i].Total = decimal.Zero
		lines[seed[i].ID] = &seed[i]
	}
	for _, a := range ds.Allocations {
		p, ok := ix.visible(a, includeProvisional)
		if !ok {
			continue
		}
		line, ok := lines[key(a, p)]
		if !ok {
			continue
		}
		toDate, total := Revenue(a.Start, a.End, ix.EffectiveRate(a), asOf)
		line.ToDate = line.ToDate.Add(toDate)
		line.Total = line.Total.Add(total)
	}
	fold := cases.Fold()
	for i := range seed {
		seed[i].ToDate = generic.Round(seed[i].ToDate)
		seed[i].Total = generic.Round(seed[i].Total)
	}
	sort.SliceStable(seed, func(i, j int) bool {
		return fold.String(seed[i].Name) < fold.String(seed[j].Name)
	})
	return seed
}

func RevenueByProject(ds *Dataset, asOf generic.Date, includeProvisional bool) []RevenueLine {
	seed := make([]RevenueLine, 0, len(ds.Projects))
	for _, p := range ds.Projects {
		if !includeProvisional && p.Provisional() {
			continue
		}
		seed = append(seed, RevenueLine{ID: p.ID, Name: p.Name})
	}
	return revenueBy(ds, asOf, includeProvisional, seed, func(_ Allocation, p *Project) int64 { return p.ID })
}

func RevenueByClient(ds *Dataset, asOf generic.Date, includeProvisional bool) []RevenueLine {
	seed := make([]RevenueLine, 0, len(ds.Clients))
	for _, c := range ds.Clients {
		seed = append(seed, RevenueLine{ID: c.ID, Name: c.Name})
	}
	return revenueBy(ds, asOf, includeProvisional, seed, func(_ Allocation, p *Project) int64 { return p.ClientID })
}

func RevenueByEngineer(ds *Dataset, asOf generic.Date, includeProvisional bool) []RevenueLine {
	seed := make([]RevenueLine, 0, len(ds.Engineers))
	for _, e := range ds.Engineers {
		seed = append(seed, RevenueLine{ID: e.ID, Name: e.Name})
	}
	return revenueBy(ds, asOf, includeProvisional, seed, func(a Allocation, _ *Project) int64 { return a.EngineerID })
}
