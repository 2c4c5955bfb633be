// Package duplicates finds repeated code across the parsed files of one
// analysis run. Three passes of increasing cost and decreasing required
// similarity link function fragments: exact hashing of the normalized token
// stream, AST shape comparison, and MinHash similarity over canonicalized
// tokens. A union-find arena over fragment indices makes group membership
// transitive across passes; no state survives the run.
package duplicates

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/refacto-hq/refacto/internal/analyzer"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/pkg/model"
)

// Finder implements analyzer.DuplicateFinder over extracted function
// fragments.
type Finder struct{}

func NewFinder() *Finder {
	return &Finder{}
}

// link records one verified match between two fragments.
type link struct {
	a, b       int
	pass       model.DuplicatePass
	similarity float64
}

// match is the strongest evidence seen for one fragment's membership.
type match struct {
	pass       model.DuplicatePass
	similarity float64
}

func passStrength(p model.DuplicatePass) int {
	switch p {
	case model.PassExact:
		return 3
	case model.PassStructural:
		return 2
	case model.PassSemantic:
		return 1
	default:
		return 0
	}
}

// Find runs the three passes and returns one group per connected component
// with at least two members, plus one duplicate_code issue per member. A
// member linked by several passes is counted once, at the confidence of its
// strongest pass.
func (f *Finder) Find(files []*parser.ParsedFile, opts *analyzer.Options) ([]model.DuplicateGroup, []model.Issue) {
	frags := extractFragments(files, opts.DuplicateMinLines)
	if len(frags) < 2 {
		return nil, nil
	}

	uf := newUnionFind(len(frags))
	best := make([]match, len(frags))
	var links []link

	links = exactPass(frags, uf, best, links)
	links = structuralPass(frags, uf, best, links, opts.StructuralThreshold)
	links = semanticPass(frags, uf, best, links, opts.SemanticThreshold)

	return buildGroups(frags, uf, best, links, opts)
}

// exactPass links fragments whose normalized token streams hash identically.
func exactPass(frags []fragment, uf *unionFind, best []match, links []link) []link {
	buckets := make(map[uint64][]int)
	for i := range frags {
		buckets[frags[i].exactHash] = append(buckets[frags[i].exactHash], i)
	}
	for _, bucket := range buckets {
		for i := 1; i < len(bucket); i++ {
			links = connect(uf, best, links, bucket[0], bucket[i], model.PassExact, 1.0)
		}
	}
	return links
}

// structuralPass links fragments with identical node-kind shapes directly,
// then estimates kind-shingle similarity for the rest. Pairs already in the
// same component are left alone.
func structuralPass(frags []fragment, uf *unionFind, best []match, links []link, threshold float64) []link {
	buckets := make(map[uint64][]int)
	for i := range frags {
		buckets[frags[i].shapeHash] = append(buckets[frags[i].shapeHash], i)
	}
	for _, bucket := range buckets {
		for i := 1; i < len(bucket); i++ {
			if uf.find(bucket[0]) == uf.find(bucket[i]) {
				continue
			}
			links = connect(uf, best, links, bucket[0], bucket[i], model.PassStructural, 1.0)
		}
	}

	sigs := make([]*signature, len(frags))
	for i := range frags {
		sigs[i] = frags[i].kindSig
	}
	for _, pair := range candidatePairs(sigs) {
		a, b := pair[0], pair[1]
		if uf.find(a) == uf.find(b) {
			continue
		}
		if overlapping(&frags[a], &frags[b]) {
			continue
		}
		if sim := sigs[a].jaccard(sigs[b]); sim >= threshold {
			links = connect(uf, best, links, a, b, model.PassStructural, sim)
		}
	}
	return links
}

// semanticPass scores canonicalized token similarity for candidate pairs
// where at least one side is still ungrouped. An ungrouped fragment can
// join an existing group by matching one of its members; pairs inside
// settled groups are not rescored.
func semanticPass(frags []fragment, uf *unionFind, best []match, links []link, threshold float64) []link {
	grouped := make([]bool, len(frags))
	for i := range frags {
		grouped[i] = uf.size[uf.find(i)] > 1
	}

	sigs := make([]*signature, len(frags))
	for i := range frags {
		sigs[i] = frags[i].tokenSig
	}
	for _, pair := range candidatePairs(sigs) {
		a, b := pair[0], pair[1]
		if grouped[a] && grouped[b] {
			continue
		}
		if uf.find(a) == uf.find(b) {
			continue
		}
		if overlapping(&frags[a], &frags[b]) {
			continue
		}
		if sim := sigs[a].jaccard(sigs[b]); sim >= threshold {
			links = connect(uf, best, links, a, b, model.PassSemantic, sim)
		}
	}
	return links
}

// connect unions a verified pair, records the link, and upgrades each
// endpoint's best match.
func connect(uf *unionFind, best []match, links []link, a, b int, pass model.DuplicatePass, sim float64) []link {
	uf.union(a, b)
	upgrade(best, a, pass, sim)
	upgrade(best, b, pass, sim)
	return append(links, link{a: a, b: b, pass: pass, similarity: sim})
}

func upgrade(best []match, i int, pass model.DuplicatePass, sim float64) {
	cur := best[i]
	if passStrength(pass) > passStrength(cur.pass) ||
		(passStrength(pass) == passStrength(cur.pass) && sim > cur.similarity) {
		best[i] = match{pass: pass, similarity: sim}
	}
}

// overlapping guards against pairing a fragment with one it contains, such
// as a nested function inside its parent.
func overlapping(a, b *fragment) bool {
	return a.path == b.path && a.startLine <= b.endLine && b.startLine <= a.endLine
}

// buildGroups converts connected components into duplicate groups and
// per-member issues. Groups and members are ordered by file position.
func buildGroups(frags []fragment, uf *unionFind, best []match, links []link, opts *analyzer.Options) ([]model.DuplicateGroup, []model.Issue) {
	members := make(map[int][]int)
	for i := range frags {
		root := uf.find(i)
		members[root] = append(members[root], i)
	}

	type groupStat struct {
		pass model.DuplicatePass
		sim  float64
	}
	stats := make(map[int]groupStat)
	for _, l := range links {
		root := uf.find(l.a)
		stat, ok := stats[root]
		if !ok {
			stats[root] = groupStat{pass: l.pass, sim: l.similarity}
			continue
		}
		if passStrength(l.pass) > passStrength(stat.pass) {
			stat.pass = l.pass
		}
		if l.similarity < stat.sim {
			stat.sim = l.similarity
		}
		stats[root] = stat
	}

	var roots []int
	for root, idxs := range members {
		if len(idxs) < 2 {
			continue
		}
		sort.Slice(idxs, func(i, j int) bool {
			a, b := &frags[idxs[i]], &frags[idxs[j]]
			if a.path != b.path {
				return a.path < b.path
			}
			return a.startLine < b.startLine
		})
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool {
		a := &frags[members[roots[i]][0]]
		b := &frags[members[roots[j]][0]]
		if a.path != b.path {
			return a.path < b.path
		}
		return a.startLine < b.startLine
	})

	var groups []model.DuplicateGroup
	var issues []model.Issue
	for _, root := range roots {
		idxs := members[root]
		stat := stats[root]
		groupID := uuid.New()
		group := model.DuplicateGroup{
			ID:         groupID,
			Pass:       stat.pass,
			Similarity: stat.sim,
		}

		for _, idx := range idxs {
			frag := &frags[idx]
			issueID := uuid.New()

			others := len(idxs) - 1
			noun := "locations"
			if others == 1 {
				noun = "location"
			}

			issues = append(issues, model.Issue{
				ID:               issueID,
				Type:             model.IssueDuplicateCode,
				Severity:         model.SeverityMedium,
				Confidence:       memberConfidence(best[idx], opts),
				FilePath:         frag.path,
				FunctionName:     frag.function,
				LineStart:        frag.startLine,
				LineEnd:          frag.endLine,
				Description:      fmt.Sprintf("Function '%s' duplicates %d other %s", frag.function, others, noun),
				Recommendation:   "Extract the shared logic into one function and call it from each site",
				DuplicateGroupID: &groupID,
				Metrics: model.Metrics{
					Similarity: best[idx].similarity,
					Lines:      frag.lines,
				},
			})
			group.Members = append(group.Members, model.DuplicateMember{
				FilePath:     frag.path,
				FunctionName: frag.function,
				LineStart:    frag.startLine,
				LineEnd:      frag.endLine,
			})
			group.IssueIDs = append(group.IssueIDs, issueID)
		}
		groups = append(groups, group)
	}
	return groups, issues
}

// memberConfidence maps a member's strongest match to its confidence score:
// exact is always 100, structural scales 85-95 inside the threshold band,
// semantic is the rounded percentage score.
func memberConfidence(m match, opts *analyzer.Options) int {
	switch m.pass {
	case model.PassExact:
		return 100
	case model.PassStructural:
		return structuralConfidence(m.similarity, opts.StructuralThreshold)
	case model.PassSemantic:
		return int(math.Round(m.similarity * 100))
	default:
		return 0
	}
}

func structuralConfidence(sim, threshold float64) int {
	if threshold >= 1 {
		return 95
	}
	scaled := (sim - threshold) / (1 - threshold)
	if scaled < 0 {
		scaled = 0
	}
	if scaled > 1 {
		scaled = 1
	}
	return 85 + int(math.Round(scaled*10))
}

// unionFind is a per-run arena over fragment indices.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	u := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range u.parent {
		u.parent[i] = i
		u.size[i] = 1
	}
	return u
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
}
