// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package risk

import (
	"github.com/bonial-oss/threatmodel/internal/types"
)

// Index is the asset↔threat relation of a run, keyed by asset name. It is
// built once after assets and threats are final; neither entity holds a
// back-reference to the other.
type Index struct {
	byAsset map[string][]int
}

// NewIndex relates every threat to the assets it names. A reference to an
// asset missing from the inventory is left out of the relation and
// reported as a *types.DanglingReferenceError. Repeated names within one
// threat are related once.
func NewIndex(assets []types.Asset, threats []types.Threat) (*Index, []error) {
	known := make(map[string]bool, len(assets))
	for _, a := range assets {
		known[a.Name] = true
	}

	ix := &Index{byAsset: make(map[string][]int, len(assets))}
	var dangling []error
	for ti, t := range threats {
		for _, name := range t.AffectedAssets {
			if !known[name] {
				dangling = append(dangling, &types.DanglingReferenceError{Threat: t.Name, Asset: name})
				continue
			}
			linked := ix.byAsset[name]
			if n := len(linked); n > 0 && linked[n-1] == ti {
				continue
			}
			ix.byAsset[name] = append(linked, ti)
		}
	}
	return ix, dangling
}

// ThreatIndexes returns the positions, in the threat list the index was
// built from, of the threats affecting the named asset.
func (ix *Index) ThreatIndexes(asset string) []int {
	return ix.byAsset[asset]
}

// Linked returns the threats affecting the named asset. threats must be the
// list the index was built from.
func (ix *Index) Linked(asset string, threats []types.Threat) []types.Threat {
	idxs := ix.byAsset[asset]
	out := make([]types.Threat, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, threats[i])
	}
	return out
}
