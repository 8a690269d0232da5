package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
	"github.com/ericfisherdev/pulldash/internal/domain/port/driven"
	"github.com/ericfisherdev/pulldash/internal/domain/search"
)

// PullSync fetches every section on every connection, merges pulls that
// match several sections, computes attention and replaces the cached pull
// list with the result.
type PullSync struct {
	provider    driven.PullProvider
	connections driven.ConnectionStore
	sections    driven.SectionStore
	stars       driven.StarStore
	pulls       driven.PullStore
}

// NewPullSync creates a PullSync with all required dependencies.
func NewPullSync(
	provider driven.PullProvider,
	connections driven.ConnectionStore,
	sections driven.SectionStore,
	stars driven.StarStore,
	pulls driven.PullStore,
) *PullSync {
	return &PullSync{
		provider:    provider,
		connections: connections,
		sections:    sections,
		stars:       stars,
		pulls:       pulls,
	}
}

// Run performs one sync cycle. Fetching, deduplication, attention and
// reconciliation run strictly in that order; any fetch error aborts the
// cycle before the cache is touched.
func (j *PullSync) Run(ctx context.Context) error {
	start := time.Now()

	connections, err := j.connections.List(ctx)
	if err != nil {
		return fmt.Errorf("list connections: %w", err)
	}
	sections, err := j.sections.List(ctx)
	if err != nil {
		return fmt.Errorf("list sections: %w", err)
	}
	starred, err := j.stars.ListStarred(ctx)
	if err != nil {
		return fmt.Errorf("list stars: %w", err)
	}

	var fetched []model.Pull
	var queries int
	for _, section := range sections {
		for _, conn := range connections {
			for _, sub := range search.SplitQueries(section.Search) {
				if err := ctx.Err(); err != nil {
					return err
				}

				query := search.PrepareQuery(sub, conn)
				queries++

				results, err := j.provider.SearchPulls(ctx, conn, query)
				if err != nil {
					return fmt.Errorf("search %q on connection %s: %w", query, conn.ID, err)
				}

				for _, p := range results {
					p.ConnectionID = conn.ID
					p.UID = model.PullUID(conn.ID, p.ID)
					if p.Host == "" {
						p.Host = conn.ResolvedHost()
					}
					p.Sections = []string{section.ID}
					p.Starred = starred[p.UID]
					fetched = append(fetched, p)
				}
			}
		}
	}

	pulls := DedupePulls(fetched)

	attentionSections := make(map[string]bool)
	for _, s := range sections {
		if s.Attention {
			attentionSections[s.ID] = true
		}
	}
	viewers := j.viewers(ctx, connections)

	var inAttention int
	for i := range pulls {
		p := &pulls[i]
		if !intersects(p.Sections, attentionSections) {
			continue
		}
		vc, ok := viewers[p.ConnectionID]
		if !ok {
			continue
		}
		attention := IsInAttentionSet(*vc.Viewer, vc, *p)
		p.Attention = &attention
		if attention.Set {
			inAttention++
		}
	}

	cached, err := j.pulls.ListUIDs(ctx)
	if err != nil {
		return fmt.Errorf("list cached pulls: %w", err)
	}
	stale := StaleUIDs(cached, pulls)

	if err := j.pulls.Reconcile(ctx, stale, pulls); err != nil {
		return fmt.Errorf("reconcile pulls: %w", err)
	}

	slog.Info("pull sync complete",
		"connections", len(connections),
		"sections", len(sections),
		"queries", queries,
		"fetched", len(fetched),
		"pulls", len(pulls),
		"removed", len(stale),
		"attention", inAttention,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return nil
}

// viewers returns the connections that have a viewer profile, keyed by id.
// A connection that has never been through the viewer sync gets its profile
// fetched here; failures only disable attention for that connection.
func (j *PullSync) viewers(ctx context.Context, connections []model.Connection) map[string]model.Connection {
	result := make(map[string]model.Connection, len(connections))
	for _, conn := range connections {
		if conn.Viewer == nil {
			profile, err := j.provider.GetViewer(ctx, conn)
			if err != nil {
				slog.Warn("viewer unavailable, skipping attention", "connection", conn.ID, "error", err)
				continue
			}
			if err := j.connections.UpdateViewer(ctx, conn.ID, profile); err != nil {
				slog.Warn("failed to cache viewer", "connection", conn.ID, "error", err)
			}
			conn.Viewer = &profile
		}
		result[conn.ID] = conn
	}
	return result
}

// DedupePulls merges pulls with the same uid. The first occurrence is kept
// as the representative and its Sections become the union, in first-seen
// order, of every occurrence's sections.
func DedupePulls(pulls []model.Pull) []model.Pull {
	index := make(map[string]int, len(pulls))
	var merged []model.Pull

	for _, p := range pulls {
		i, ok := index[p.UID]
		if !ok {
			index[p.UID] = len(merged)
			p.Sections = appendUnique(nil, p.Sections...)
			merged = append(merged, p)
			continue
		}
		merged[i].Sections = appendUnique(merged[i].Sections, p.Sections...)
	}

	return merged
}

// StaleUIDs returns the cached uids that are absent from the fresh pulls.
func StaleUIDs(cached []string, fresh []model.Pull) []string {
	keep := make(map[string]bool, len(fresh))
	for _, p := range fresh {
		keep[p.UID] = true
	}

	var stale []string
	for _, uid := range cached {
		if !keep[uid] {
			stale = append(stale, uid)
		}
	}
	return stale
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

func intersects(ids []string, set map[string]bool) bool {
	for _, id := range ids {
		if set[id] {
			return true
		}
	}
	return false
}
