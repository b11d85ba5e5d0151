package scenario

import (
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/staffing"
)

// =============================================================================
// MATERIALIZER - Replays a change log over a copy of the base dataset
// =============================================================================

// Result is a materialized scenario.
type Result struct {
	Dataset *staffing.Dataset

	// Assigned maps the Seq of each *_add change to the id it created.
	Assigned map[int64]int64

	// Adjustments are the cell_adjust changes, in log order, for Aggregate.
	Adjustments []staffing.CellAdjustment

	// Skipped lists the Seq of changes with an unrecognised kind.
	Skipped []int64
}

// working is the mutable replay state. Entities are kept in maps for O(1)
// patching and in order slices so the output keeps the input's order with
// additions appended.
type working struct {
	projects    map[int64]*staffing.Project
	projOrder   []int64
	engineers   map[int64]*staffing.Engineer
	engOrder    []int64
	allocations map[int64]*staffing.Allocation
	allocOrder  []int64
	nextID      int64
}

// Materialize applies changes strictly in order to a deep copy of base.
// base is never modified. Scenario-only entities receive negative ids
// below every existing id, so they never collide with persisted rows.
func Materialize(base *staffing.Dataset, changes []Change) Result {
	ds := base.Clone()
	w := &working{
		projects:    make(map[int64]*staffing.Project, len(ds.Projects)),
		engineers:   make(map[int64]*staffing.Engineer, len(ds.Engineers)),
		allocations: make(map[int64]*staffing.Allocation, len(ds.Allocations)),
		nextID:      -1,
	}
	for i := range ds.Projects {
		p := &ds.Projects[i]
		w.projects[p.ID] = p
		w.projOrder = append(w.projOrder, p.ID)
		w.lowerNextID(p.ID)
	}
	for i := range ds.Engineers {
		e := &ds.Engineers[i]
		w.engineers[e.ID] = e
		w.engOrder = append(w.engOrder, e.ID)
	}
	for i := range ds.Allocations {
		a := &ds.Allocations[i]
		w.allocations[a.ID] = a
		w.allocOrder = append(w.allocOrder, a.ID)
		w.lowerNextID(a.ID)
	}

	res := Result{Assigned: make(map[int64]int64)}
	for _, ch := range changes {
		switch p := ch.Payload.(type) {
		case EngineerRate:
			if e, ok := w.engineers[p.EngineerID]; ok {
				e.DayRate = p.NewDayRate
			}
		case ProjectAdd:
			res.Assigned[ch.Seq] = w.addProject(p)
		case ProjectUpdate:
			w.updateProject(p)
		case ProjectDelete:
			w.deleteProject(p.ProjectID)
		case AllocationAdd:
			res.Assigned[ch.Seq] = w.addAllocation(p)
		case AllocationUpdate:
			w.updateAllocation(p)
		case AllocationDelete:
			delete(w.allocations, p.AllocationID)
		case CellAdjust:
			res.Adjustments = append(res.Adjustments, staffing.CellAdjustment{
				ClientID: p.ClientID,
				Column:   p.Month,
				Amount:   p.Amount,
			})
		default:
			res.Skipped = append(res.Skipped, ch.Seq)
		}
	}

	res.Dataset = w.dataset(ds.Clients)
	return res
}

func (w *working) lowerNextID(id int64) {
	if id <= w.nextID {
		w.nextID = id - 1
	}
}

func (w *working) allocateID() int64 {
	id := w.nextID
	w.nextID--
	return id
}

func (w *working) addProject(p ProjectAdd) int64 {
	id := w.allocateID()
	status := p.Status
	if status == "" {
		status = staffing.StatusConfirmed
	}
	proj := &staffing.Project{
		ID:         id,
		ClientID:   p.ClientID,
		Name:       p.Name,
		Start:      p.StartDate,
		End:        p.EndDate,
		AgreedRate: p.AgreedRate,
		Status:     status,
		Tentative:  true,
	}
	w.projects[id] = proj
	w.projOrder = append(w.projOrder, id)
	return id
}

// updateProject patches a copy and keeps it only if the window is still
// ordered. A patch that would put end before start is dropped whole.
func (w *working) updateProject(u ProjectUpdate) {
	cur, ok := w.projects[u.ProjectID]
	if !ok {
		return
	}
	p := *cur
	applyRequired(&p.Name, u.Name)
	applyRequired(&p.ClientID, u.ClientID)
	applyRequired(&p.Start, u.StartDate)
	applyOptional(&p.End, u.EndDate)
	applyOptional(&p.AgreedRate, u.AgreedRate)
	applyRequired(&p.Status, u.Status)
	if inverted(p.Start, p.End) {
		return
	}
	*cur = p
}

// deleteProject cascades to every allocation on the project, whether it
// came from the base data or an earlier change.
func (w *working) deleteProject(id int64) {
	delete(w.projects, id)
	for allocID, a := range w.allocations {
		if a.ProjectID == id {
			delete(w.allocations, allocID)
		}
	}
}

func (w *working) addAllocation(p AllocationAdd) int64 {
	id := w.allocateID()
	status := p.Status
	if status == "" {
		status = staffing.StatusConfirmed
		if proj, ok := w.projects[p.ProjectID]; ok {
			status = proj.Status
		}
	}
	w.allocations[id] = &staffing.Allocation{
		ID:         id,
		EngineerID: p.EngineerID,
		ProjectID:  p.ProjectID,
		Start:      p.StartDate,
		End:        p.EndDate,
		Status:     status,
	}
	w.allocOrder = append(w.allocOrder, id)
	return id
}

// updateAllocation follows the same rule as updateProject: an update that
// would invert the window has no effect.
func (w *working) updateAllocation(u AllocationUpdate) {
	cur, ok := w.allocations[u.AllocationID]
	if !ok {
		return
	}
	a := *cur
	applyRequired(&a.EngineerID, u.EngineerID)
	applyRequired(&a.ProjectID, u.ProjectID)
	applyRequired(&a.Start, u.StartDate)
	applyOptional(&a.End, u.EndDate)
	applyRequired(&a.Status, u.Status)
	if inverted(a.Start, a.End) {
		return
	}
	*cur = a
}

func inverted(start generic.Date, end *generic.Date) bool {
	return end != nil && end.Before(start)
}

// dataset emits the surviving entities in their original order. The final
// sweep drops allocations whose project no longer exists, so the output
// never holds a dangling project reference.
func (w *working) dataset(clients []staffing.Client) *staffing.Dataset {
	out := &staffing.Dataset{Clients: clients}
	emitted := make(map[int64]bool, len(w.projects))
	for _, id := range w.projOrder {
		if p, ok := w.projects[id]; ok && !emitted[id] {
			emitted[id] = true
			out.Projects = append(out.Projects, *p)
		}
	}
	for _, id := range w.engOrder {
		out.Engineers = append(out.Engineers, *w.engineers[id])
	}
	for _, id := range w.allocOrder {
		a, ok := w.allocations[id]
		if !ok {
			continue
		}
		if _, ok := w.projects[a.ProjectID]; !ok {
			continue
		}
		out.Allocations = append(out.Allocations, *a)
	}
	return out
}
