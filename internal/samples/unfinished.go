package samples

import "slices"

// StopReason explains why a campaign must not continue. The zero value
// means "keep going".
type StopReason struct {
	Sample string
}

// Stop reports whether the reason asks the caller to abort.
func (s StopReason) Stop() bool {
	return s.Sample != ""
}

func (s StopReason) String() string {
	if !s.Stop() {
		return ""
	}
	return "process '" + s.Sample + "' unfinished"
}

// Unfinished lists the active samples without a successful process record,
// in declaration order.
func (r *Registry) Unfinished() []string {
	finished := map[string]bool{}
	for _, p := range r.Processes() {
		if p.Successful() {
			finished[p.Name] = true
		}
	}
	return slices.DeleteFunc(r.Names(), func(name string) bool { return finished[name] })
}

// RemoveUnfinished drops every unfinished sample from the registry and
// returns the removed names. With stop set, nothing is removed and the first
// unfinished sample is returned as the StopReason instead.
func (r *Registry) RemoveUnfinished(stop bool) ([]string, StopReason) {
	unfinished := r.Unfinished()
	if len(unfinished) == 0 {
		return nil, StopReason{}
	}
	if stop {
		return nil, StopReason{Sample: unfinished[0]}
	}
	for _, name := range unfinished {
		r.Remove(name)
	}
	return unfinished, StopReason{}
}
