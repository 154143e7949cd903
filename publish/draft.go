package publish

import (
	"context"
	"fmt"

	"gbp-autoposter/pkg/autopost"
	"gbp-autoposter/queue"
)

// Draft expands a bulk request into scheduled items without storing them.
// With autoSummary, each item gets composed text at successive cycle positions;
// the stored cycle state is left untouched.
func (p *Publisher) Draft(ctx context.Context, st *autopost.State, req queue.BulkRequest, autoSummary bool) ([]autopost.ScheduledItem, error) {
	items, err := queue.BuildBulk(req, p.mediaBase, p.now())
	if err != nil {
		return nil, err
	}
	idx := autopost.FindProfile(st.Profiles, req.ProfileID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", autopost.ErrProfileNotFound, req.ProfileID)
	}
	if !autoSummary && !req.Body.AutoGenerateSummary {
		return items, nil
	}

	prof := st.Profiles[idx]
	basics := p.Basics(ctx, &prof)
	entry := st.Cycle[prof.ProfileID]
	for i := range items {
		if items[i].Body.PostText != "" {
			continue
		}
		post := p.composer.Compose(ctx, &prof, entry, items[i].Body, basics)
		items[i].Body.PostText = p.finishText(post.Summary, post.Hashtags, &prof)
		if items[i].Body.CTA == "" {
			items[i].Body.CTA = post.CTACode
		}
		entry = post.Next
	}
	p.logger.Info("Drafted bulk posts", "profile_id", prof.ProfileID, "count", len(items))
	return items, nil
}
