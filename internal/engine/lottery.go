package engine

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/iliyamo/enrollment-lottery/internal/model"
	"github.com/iliyamo/enrollment-lottery/internal/notify"
	"github.com/iliyamo/enrollment-lottery/internal/repository"
)

// Origin tells who asked for a draw.
type Origin string

const (
	OriginOrganizer Origin = "organizer"
	OriginBackfill  Origin = "backfill"
)

// DrawResult describes one committed draw.
type DrawResult struct {
	EventID   string `json:"event_id"`
	Origin    Origin `json:"origin"`
	Requested int    `json:"requested"`
	// Invitations are the invitations issued by this draw, in draw order.
	Invitations []model.Invitation `json:"invitations"`
	// Expired are overdue invitations the draw expired before sampling.
	Expired []model.Invitation `json:"expired,omitempty"`
}

// Lottery selects winners uniformly at random from the waiting pool.
type Lottery struct {
	c *core
}

// Draw issues up to n invitations for the event.  The number actually
// issued is bounded by the free capacity and the size of the pool; zero
// winners is a valid outcome.
func (l *Lottery) Draw(ctx context.Context, eventID string, n int) (*DrawResult, error) {
	if n < 0 {
		return nil, validationf("count must be >= 0, got %d", n)
	}
	return l.draw(ctx, eventID, n, OriginOrganizer)
}

func (l *Lottery) draw(ctx context.Context, eventID string, n int, origin Origin) (*DrawResult, error) {
	var (
		res    *DrawResult
		losers []model.WaitlistEntry
	)
	err := l.c.tx(ctx, func(ctx context.Context, r repository.Repository) error {
		res = &DrawResult{EventID: eventID, Origin: origin, Requested: n, Invitations: []model.Invitation{}}
		losers = nil

		ev, err := event(ctx, r, eventID)
		if err != nil {
			return err
		}
		now := r.Now()
		switch {
		case origin == OriginBackfill && !ev.BackfillOpen(now):
			return nil
		case origin == OriginOrganizer && !ev.Drawable(now):
			return statef("event %s is not drawable (status %s, registration closes %s)",
				ev.ID, ev.Status, ev.RegistrationClosesAt.Format(time.RFC3339))
		}

		res.Expired, err = expireOverdue(ctx, r, ev.ID, now)
		if err != nil {
			return err
		}
		want := n
		if origin == OriginBackfill {
			// Slots freed here are replaced like any other expiry.
			want += len(res.Expired)
		}
		res.Invitations, losers, err = l.pick(ctx, r, ev, want, now)
		if err != nil {
			return err
		}
		if len(res.Expired) == 0 && len(res.Invitations) == 0 {
			return nil
		}
		return r.Events().Touch(ctx, ev.ID, ev.Version)
	})
	if err != nil {
		return nil, err
	}

	ns := make([]notify.Notification, 0, 2*len(res.Invitations)+len(losers))
	for _, inv := range res.Invitations {
		ns = append(ns, notify.LotteryWon(inv.EventID, inv.EntrantID, inv.ID, inv.IssuedAt), notify.InvitationIssued(inv))
	}
	if origin == OriginOrganizer && len(res.Invitations) > 0 {
		at := res.Invitations[0].IssuedAt
		for _, w := range losers {
			ns = append(ns, notify.LotteryLost(w.EventID, w.EntrantID, at))
		}
	}
	l.c.dispatch(ctx, ns)

	if len(res.Invitations) > 0 || len(res.Expired) > 0 {
		l.c.log.InfoContext(ctx, "lottery draw committed",
			slog.String("event_id", eventID),
			slog.String("origin", string(origin)),
			slog.Int("requested", n),
			slog.Int("issued", len(res.Invitations)),
			slog.Int("expired", len(res.Expired)),
		)
	}
	return res, nil
}

// pick samples min(n, available, |pool|) waiting entries, marks them
// Chosen and issues a Pending invitation to each.  It returns the issued
// invitations and the entries left waiting.
func (l *Lottery) pick(ctx context.Context, r repository.Repository, ev *model.Event, n int, now time.Time) ([]model.Invitation, []model.WaitlistEntry, error) {
	pool, err := r.Waitlist().ListByStatus(ctx, ev.ID, model.WaitlistWaiting)
	if err != nil {
		return nil, nil, err
	}
	if n == 0 || len(pool) == 0 {
		return []model.Invitation{}, pool, nil
	}
	active, err := r.Registrations().CountActive(ctx, ev.ID)
	if err != nil {
		return nil, nil, err
	}
	pending, err := r.Invitations().CountPending(ctx, ev.ID)
	if err != nil {
		return nil, nil, err
	}
	k := min(n, ev.Available(active, pending), len(pool))
	if k <= 0 {
		return []model.Invitation{}, pool, nil
	}

	// A stable order makes the draw reproducible for a given random source.
	slices.SortFunc(pool, func(a, b model.WaitlistEntry) int { return cmp.Compare(a.ID, b.ID) })
	chosen := make([]bool, len(pool))
	issued := make([]model.Invitation, 0, k)
	for _, i := range sample(l.c.rand, len(pool), k) {
		chosen[i] = true
		w := pool[i]
		if err := r.Waitlist().UpdateStatus(ctx, w.ID, model.WaitlistWaiting, model.WaitlistChosen, now); err != nil {
			return nil, nil, err
		}
		inv := model.Invitation{
			ID:              l.c.newID(),
			EventID:         ev.ID,
			EntrantID:       w.EntrantID,
			WaitlistEntryID: w.ID,
			Status:          model.InvitationPending,
			IssuedAt:        now,
			ReplyBy:         now.Add(l.c.window),
		}
		if err := r.Invitations().Create(ctx, &inv); err != nil {
			return nil, nil, err
		}
		issued = append(issued, inv)
	}

	rest := make([]model.WaitlistEntry, 0, len(pool)-k)
	for i, w := range pool {
		if !chosen[i] {
			rest = append(rest, w)
		}
	}
	return issued, rest, nil
}

// expireOverdue moves every overdue Pending invitation of the event to
// Expired and cancels its waitlist entry.
func expireOverdue(ctx context.Context, r repository.Repository, eventID string, now time.Time) ([]model.Invitation, error) {
	overdue, err := r.Invitations().ListOverdue(ctx, eventID, now)
	if err != nil {
		return nil, err
	}
	for i := range overdue {
		if err := resolve(ctx, r, &overdue[i], model.InvitationExpired, now); err != nil {
			return nil, err
		}
	}
	return overdue, nil
}

// resolve moves inv out of Pending and, unless it was accepted, releases
// its waitlist entry.
func resolve(ctx context.Context, r repository.Repository, inv *model.Invitation, status model.InvitationStatus, now time.Time) error {
	if err := r.Invitations().Resolve(ctx, inv.ID, status, now); err != nil {
		return err
	}
	inv.Status = status
	inv.RespondedAt = &now
	if status == model.InvitationAccepted {
		return nil
	}
	return cancelEntry(ctx, r, inv.WaitlistEntryID, now)
}

func cancelEntry(ctx context.Context, r repository.Repository, entryID string, now time.Time) error {
	w, err := r.Waitlist().GetByID(ctx, entryID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	if w.Status == model.WaitlistCancelled {
		return nil
	}
	return r.Waitlist().UpdateStatus(ctx, w.ID, w.Status, model.WaitlistCancelled, now)
}
