package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"pickup-market/internal/domain/contact"
	"pickup-market/internal/domain/posting"
	"pickup-market/internal/ports"
)

const listConcurrency = 4

// Get builds a view from a fresh server read.
func (s *reservationService) Get(ctx context.Context, id int64) (ports.ContactView, error) {
	return s.fetchView(ctx, id)
}

// List returns a view for each of the caller's contacts, in server order.
func (s *reservationService) List(ctx context.Context) ([]ports.ContactView, error) {
	contacts, err := s.api.ListContacts(ctx)
	if err != nil {
		s.logger.Error(ctx, "contacts_list_failed", "Failed to list contacts", err, nil)
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	postIDs := make([]int64, 0, len(contacts))
	seen := make(map[int64]bool, len(contacts))
	for _, c := range contacts {
		if !seen[c.PostID] {
			seen[c.PostID] = true
			postIDs = append(postIDs, c.PostID)
		}
	}

	// one sibling read per posting, not per contact
	byPost := make([][]contact.Contact, len(postIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for i, postID := range postIDs {
		g.Go(func() error {
			all, err := s.api.ContactsForPost(gctx, postID)
			if err != nil {
				return fmt.Errorf("contacts for post %d: %w", postID, err)
			}
			byPost[i] = all
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error(ctx, "contacts_list_failed", "Failed to read sibling contacts", err, nil)
		return nil, err
	}

	index := make(map[int64][]contact.Contact, len(postIDs))
	for i, postID := range postIDs {
		index[postID] = byPost[i]
	}

	views := make([]ports.ContactView, 0, len(contacts))
	for _, c := range contacts {
		views = append(views, s.buildView(c, index[c.PostID]))
	}
	return views, nil
}

func (s *reservationService) fetchView(ctx context.Context, id int64) (ports.ContactView, error) {
	c, err := s.api.GetContact(ctx, id)
	if err != nil {
		return ports.ContactView{}, fmt.Errorf("get contact %d: %w", id, err)
	}
	all, err := s.api.ContactsForPost(ctx, c.PostID)
	if err != nil {
		return ports.ContactView{}, fmt.Errorf("contacts for post %d: %w", c.PostID, err)
	}
	return s.buildView(c, all), nil
}

// buildView derives everything the client may act on from one consistent read.
func (s *reservationService) buildView(c contact.Contact, all []contact.Contact) ports.ContactView {
	siblings := contact.Siblings(c, all)
	post := postingFor(c, all)

	view := ports.ContactView{
		Contact:   c,
		Post:      post,
		Siblings:  siblings,
		Effective: contact.DeriveEffectiveStatus(post, c, siblings),
		Actions:   contact.AvailableActions(s.role, post, c, siblings),
		FetchedAt: s.now(),
	}
	if !c.Status.Terminal() {
		view.CancelVia = contact.CancelPathFor(post.Status)
	}
	if view.Siblings == nil {
		view.Siblings = []contact.Contact{}
	}
	if view.Actions == nil {
		view.Actions = []contact.Action{}
	}
	return view
}

// postingFor prefers the posting embedded by the server. When it is missing or carries
// no status, the status is rolled up from the contacts on it.
func postingFor(c contact.Contact, all []contact.Contact) posting.Posting {
	var post posting.Posting
	if c.Post != nil {
		post = *c.Post
	}
	if post.ID == 0 {
		post.ID = c.PostID
	}
	if !post.Status.Valid() {
		statuses := make([]string, 0, len(all)+1)
		statuses = append(statuses, string(c.Status))
		for _, other := range all {
			if other.ID != c.ID {
				statuses = append(statuses, string(other.Status))
			}
		}
		post.Status = posting.Rollup(statuses...)
	}
	return post
}
