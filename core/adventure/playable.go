package adventure

import (
	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
)

// CheckPlayable reports whether the adventure is fully specified and can be shown to learners.
// It only does syntactic checks: whether the activities exist or are viewable is up to the caller.
func (a Adventure) CheckPlayable() error {
	if len(a.EntryPoints) == 0 {
		return core.NewValidationErrorf("An adventure needs at least one entry point.")
	}
	if a.NumActivities() < 2 {
		return core.NewValidationErrorf("An adventure needs at least two activities.")
	}

	refs := a.Specification.Refs()
	edges := make(map[activity.Ref][]activity.Ref, len(refs))
	for _, ref := range refs {
		as, _ := a.Specification.Get(ref.Type, ref.ID)
		for _, ds := range as.DestinationSpecs {
			if !a.Specification.Contains(ds.ActivityType, ds.ActivityID) {
				return core.NewValidationErrorf(
					"Destination (%s, %s) of (%s, %s) is not in the specification.",
					ds.ActivityType, ds.ActivityID, ref.Type, ref.ID,
				)
			}
			edges[ref] = append(edges[ref], activity.Ref{Type: ds.ActivityType, ID: ds.ActivityID})
		}
	}

	if ref, ok := findCycle(refs, edges); ok {
		return core.NewValidationErrorf("The destinations of the adventure contain a cycle through (%s, %s).", ref.Type, ref.ID)
	}

	reached := make(map[activity.Ref]bool, len(refs))
	queue := make([]activity.Ref, 0, len(refs))
	for _, ep := range a.EntryPoints {
		if !reached[ep.Ref()] {
			reached[ep.Ref()] = true
			queue = append(queue, ep.Ref())
		}
	}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, next := range edges[curr] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}
	for _, ref := range refs {
		if !reached[ref] {
			return core.NewValidationErrorf("Activity (%s, %s) is not reachable from any entry point.", ref.Type, ref.ID)
		}
	}
	return nil
}

// findCycle returns an activity on a cycle of the destination graph, if any.
func findCycle(refs []activity.Ref, edges map[activity.Ref][]activity.Ref) (activity.Ref, bool) {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[activity.Ref]int, len(refs))

	var visit func(activity.Ref) (activity.Ref, bool)
	visit = func(ref activity.Ref) (activity.Ref, bool) {
		state[ref] = inProgress
		for _, next := range edges[ref] {
			switch state[next] {
			case inProgress:
				return next, true
			case unvisited:
				if found, ok := visit(next); ok {
					return found, true
				}
			}
		}
		state[ref] = done
		return activity.Ref{}, false
	}

	for _, ref := range refs {
		if state[ref] == unvisited {
			if found, ok := visit(ref); ok {
				return found, true
			}
		}
	}
	return activity.Ref{}, false
}
