package flowmanager

import "github.com/rauldose/node-red-new-sub000/pkg/model"

// DeploymentType is the `full|nodes|flows|reload` deploy argument.
type DeploymentType string

const (
	Full   DeploymentType = "full"
	Nodes  DeploymentType = "nodes"
	Flows  DeploymentType = "flows"
	Reload DeploymentType = "reload"
)

// Diff categorizes the ids between an old and a new config snapshot.
type Diff struct {
	Added   []string
	Removed []string
	Changed []string
	Rewired []string // only the wires table differs
	Linked  []string // unchanged themselves, but wire to a changed/added/removed/rewired id
}

func indexByID(elements []model.Element) map[string]model.Element {
	idx := make(map[string]model.Element, len(elements))
	for _, e := range elements {
		idx[e.ID()] = e
	}
	return idx
}

// computeDiff categorizes ids between snapshots. full/reload treat every old
// id as removed and every new id as added, matching a from-scratch
// reload; nodes/flows compute the finer added/removed/changed/rewired/
// linked categorization by id presence and per-record deep equality.
func computeDiff(oldConfig, newConfig []model.Element, deploymentType DeploymentType) Diff {
	oldIdx := indexByID(oldConfig)
	newIdx := indexByID(newConfig)

	if deploymentType == Full || deploymentType == Reload {
		d := Diff{}
		for id := range oldIdx {
			d.Removed = append(d.Removed, id)
		}
		for id := range newIdx {
			d.Added = append(d.Added, id)
		}
		return d
	}

	d := Diff{}
	touched := map[string]bool{}
	for id, newEl := range newIdx {
		oldEl, existed := oldIdx[id]
		if !existed {
			d.Added = append(d.Added, id)
			touched[id] = true
			continue
		}
		if model.EqualIgnoringEditorFields(oldEl, newEl) {
			continue
		}
		if onlyWiresDiffer(oldEl, newEl) {
			d.Rewired = append(d.Rewired, id)
		} else {
			d.Changed = append(d.Changed, id)
		}
		touched[id] = true
	}
	for id := range oldIdx {
		if _, stillPresent := newIdx[id]; !stillPresent {
			d.Removed = append(d.Removed, id)
			touched[id] = true
		}
	}

	affected := map[string]bool{}
	for _, id := range d.Added {
		affected[id] = true
	}
	for _, id := range d.Removed {
		affected[id] = true
	}
	for _, id := range d.Changed {
		affected[id] = true
	}
	for _, id := range d.Rewired {
		affected[id] = true
	}
	for id, el := range newIdx {
		if touched[id] {
			continue
		}
		for _, port := range el.Wires() {
			for _, dest := range port {
				if affected[dest] {
					d.Linked = append(d.Linked, id)
					break
				}
			}
		}
	}
	return d
}

// expandSubflowInteriors rewrites diff entries for nodes living inside
// a subflow template. A template interior has no standalone runtime —
// it only exists as part of an instance's expansion — so any
// added/changed/removed interior id is replaced by the ids of the
// template's instance nodes, classified as changed (the instances must
// be torn down and re-expanded). An instance already in Added or
// Removed keeps that stronger classification.
func expandSubflowInteriors(d Diff, oldConfig, newConfig []model.Element) Diff {
	oldIdx := indexByID(oldConfig)
	newIdx := indexByID(newConfig)

	templateOf := func(id string, idx map[string]model.Element) string {
		el, ok := idx[id]
		if !ok {
			return ""
		}
		owner, ok := idx[el.Z()]
		if !ok || owner.Type() != "subflow" {
			return ""
		}
		return owner.ID()
	}
	instancesOf := func(templateID string) []string {
		var out []string
		for _, el := range newConfig {
			if el.Type() == "subflow:"+templateID {
				out = append(out, el.ID())
			}
		}
		return out
	}

	touchedTemplates := map[string]bool{}
	filter := func(ids []string, idx map[string]model.Element) []string {
		kept := ids[:0:0]
		for _, id := range ids {
			if tid := templateOf(id, idx); tid != "" {
				touchedTemplates[tid] = true
				continue
			}
			kept = append(kept, id)
		}
		return kept
	}
	d.Added = filter(d.Added, newIdx)
	d.Changed = filter(d.Changed, newIdx)
	d.Rewired = filter(d.Rewired, newIdx)
	d.Removed = filter(d.Removed, oldIdx)

	if len(touchedTemplates) == 0 {
		return d
	}
	already := map[string]bool{}
	for _, id := range append(append(append([]string{}, d.Added...), d.Changed...), d.Removed...) {
		already[id] = true
	}
	// a nested instance (one living inside another template) expands
	// again, until the chain reaches instances on real tabs.
	queue := make([]string, 0, len(touchedTemplates))
	seen := map[string]bool{}
	for tid := range touchedTemplates {
		queue = append(queue, tid)
		seen[tid] = true
	}
	for len(queue) > 0 {
		tid := queue[0]
		queue = queue[1:]
		for _, instID := range instancesOf(tid) {
			if outer := templateOf(instID, newIdx); outer != "" {
				if !seen[outer] {
					seen[outer] = true
					queue = append(queue, outer)
				}
				continue
			}
			if !already[instID] {
				already[instID] = true
				d.Changed = append(d.Changed, instID)
			}
		}
	}
	return d
}

func onlyWiresDiffer(a, b model.Element) bool {
	aCopy := a.Clone()
	bCopy := b.Clone()
	delete(aCopy, "wires")
	delete(bCopy, "wires")
	return model.EqualIgnoringEditorFields(aCopy, bCopy)
}
