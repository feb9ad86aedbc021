package model

import (
	"fmt"

	"github.com/ssa-sim/ssa-sim/sim"
)

// Rule names events whose rate reads the state of a site at some distance.
//
// Starting from the changed site, the walk moves len(Via) hops, each hop to
// the neighbors whose state matches the next Via entry. Every neighbor of the
// final frontier that is in state Owner has its active event leading to Event
// marked for update.
type Rule struct {
	Via   []State
	Owner State
	Event State
}

// Radius is the number of hops between the changed site and the owner of
// the affected event.
func (r Rule) Radius() int { return len(r.Via) + 1 }

func (r Rule) String() string {
	return fmt.Sprintf("via%v -> %d:%d", r.Via, r.Owner, r.Event)
}

// DependencyTable maps a state to the rules that fire when a site enters or
// leaves it.
type DependencyTable struct {
	rules [][]Rule
}

// NewDependencyTable returns an empty table over numStates states.
func NewDependencyTable(numStates int) *DependencyTable {
	return &DependencyTable{rules: make([][]Rule, numStates)}
}

// Add registers r for changes into or out of state observed.
func (d *DependencyTable) Add(observed State, r Rule) {
	for _, existing := range d.rules[observed] {
		if sameRule(existing, r) {
			return
		}
	}
	d.rules[observed] = append(d.rules[observed], r)
}

// Rules returns the rules registered for observed.
func (d *DependencyTable) Rules(observed State) []Rule {
	return d.rules[observed]
}

// MaxRadius returns the largest radius of any rule.
func (d *DependencyTable) MaxRadius() int {
	radius := 0
	for _, rs := range d.rules {
		for _, r := range rs {
			radius = max(radius, r.Radius())
		}
	}
	return radius
}

// Collect adds to ch.Update every event whose rate may have changed because
// site moved from state from to state to.
func (d *DependencyTable) Collect(site *Site, from, to State, ch *sim.Changes) {
	d.collect(site, from, ch)
	if to != from {
		d.collect(site, to, ch)
	}
}

func (d *DependencyTable) collect(site *Site, observed State, ch *sim.Changes) {
	for _, r := range d.rules[observed] {
		frontier := []*Site{site}
		for _, via := range r.Via {
			frontier = step(frontier, via)
			if len(frontier) == 0 {
				break
			}
		}
		for _, s := range frontier {
			for _, nb := range s.Neighbors {
				if nb == nil || nb.State != r.Owner {
					continue
				}
				if e := nb.Active(r.Event); e != nil {
					ch.Update.Add(e)
				}
			}
		}
	}
}

// step returns the distinct neighbors of frontier whose state matches via,
// in discovery order.
func step(frontier []*Site, via State) []*Site {
	var next []*Site
	seen := make(map[*Site]struct{})
	for _, s := range frontier {
		for _, nb := range s.Neighbors {
			if nb == nil || !nb.State.Matches(via) {
				continue
			}
			if _, ok := seen[nb]; ok {
				continue
			}
			seen[nb] = struct{}{}
			next = append(next, nb)
		}
	}
	return next
}

func sameRule(a, b Rule) bool {
	if a.Owner != b.Owner || a.Event != b.Event || len(a.Via) != len(b.Via) {
		return false
	}
	for i := range a.Via {
		if a.Via[i] != b.Via[i] {
			return false
		}
	}
	return true
}
