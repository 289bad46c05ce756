package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/iliyamo/enrollment-lottery/internal/model"
	"github.com/iliyamo/enrollment-lottery/internal/repository"
)

type eventRepo struct{ t *txn }

func (r eventRepo) Get(_ context.Context, id string) (*model.Event, error) {
	var (
		e  model.Event
		ok bool
	)
	r.t.read(func(st *state) { e, ok = st.events.rows[id] })
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r eventRepo) Create(_ context.Context, e *model.Event) error {
	return r.t.write(func(st *state) error {
		if _, ok := st.events.rows[e.ID]; ok {
			return fmt.Errorf("%w: event %s", repository.ErrDuplicate, e.ID)
		}
		st.events.put(e.ID, *e)
		return nil
	})
}

func (r eventRepo) Touch(_ context.Context, id string, version int64) error {
	return r.t.write(func(st *state) error {
		e, ok := st.events.rows[id]
		if !ok || e.Version != version {
			return repository.ErrTxConflict
		}
		e.Version++
		st.events.put(id, e)
		return nil
	})
}

func (r eventRepo) ListWithOverdueInvitations(_ context.Context, now time.Time) ([]string, error) {
	seen := map[string]struct{}{}
	ids := []string{}
	r.t.read(func(st *state) {
		for _, inv := range st.invitations.rows {
			if !inv.Overdue(now) {
				continue
			}
			if _, ok := seen[inv.EventID]; !ok {
				seen[inv.EventID] = struct{}{}
				ids = append(ids, inv.EventID)
			}
		}
	})
	slices.Sort(ids)
	return ids, nil
}

type waitlistRepo struct{ t *txn }

func (r waitlistRepo) Get(_ context.Context, eventID, entrantID string) (*model.WaitlistEntry, error) {
	var found *model.WaitlistEntry
	r.t.read(func(st *state) {
		for _, w := range st.waitlist.rows {
			if w.EventID == eventID && w.EntrantID == entrantID {
				found = &w
				return
			}
		}
	})
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (r waitlistRepo) GetByID(_ context.Context, id string) (*model.WaitlistEntry, error) {
	var (
		w  model.WaitlistEntry
		ok bool
	)
	r.t.read(func(st *state) { w, ok = st.waitlist.rows[id] })
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &w, nil
}

func (r waitlistRepo) Create(_ context.Context, w *model.WaitlistEntry) error {
	return r.t.write(func(st *state) error {
		for _, cur := range st.waitlist.rows {
			if cur.ID == w.ID || (cur.EventID == w.EventID && cur.EntrantID == w.EntrantID) {
				return fmt.Errorf("%w: waitlist entry %s/%s", repository.ErrDuplicate, w.EventID, w.EntrantID)
			}
		}
		st.waitlist.put(w.ID, *w)
		return nil
	})
}

func (r waitlistRepo) UpdateStatus(_ context.Context, id string, from, to model.WaitlistStatus, at time.Time) error {
	return r.t.write(func(st *state) error {
		w, ok := st.waitlist.rows[id]
		if !ok || w.Status != from {
			return repository.ErrTxConflict
		}
		w.Status = to
		w.UpdatedAt = at
		st.waitlist.put(id, w)
		return nil
	})
}

func (r waitlistRepo) ListByStatus(_ context.Context, eventID string, status model.WaitlistStatus) ([]model.WaitlistEntry, error) {
	out := []model.WaitlistEntry{}
	r.t.read(func(st *state) {
		for _, w := range st.waitlist.rows {
			if w.EventID == eventID && w.Status == status {
				out = append(out, w)
			}
		}
	})
	slices.SortFunc(out, func(a, b model.WaitlistEntry) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r waitlistRepo) CountByStatus(ctx context.Context, eventID string, status model.WaitlistStatus) (int, error) {
	list, err := r.ListByStatus(ctx, eventID, status)
	return len(list), err
}

type invitationRepo struct{ t *txn }

func (r invitationRepo) Get(_ context.Context, id string) (*model.Invitation, error) {
	var (
		inv model.Invitation
		ok  bool
	)
	r.t.read(func(st *state) { inv, ok = st.invitations.rows[id] })
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &inv, nil
}

func (r invitationRepo) Create(_ context.Context, inv *model.Invitation) error {
	return r.t.write(func(st *state) error {
		for _, cur := range st.invitations.rows {
			if cur.ID == inv.ID {
				return fmt.Errorf("%w: invitation %s", repository.ErrDuplicate, inv.ID)
			}
			if inv.Status == model.InvitationPending && cur.Status == model.InvitationPending &&
				cur.EventID == inv.EventID && cur.EntrantID == inv.EntrantID {
				return fmt.Errorf("%w: pending invitation %s/%s", repository.ErrDuplicate, inv.EventID, inv.EntrantID)
			}
		}
		st.invitations.put(inv.ID, *inv)
		return nil
	})
}

func (r invitationRepo) Resolve(_ context.Context, id string, status model.InvitationStatus, at time.Time) error {
	return r.t.write(func(st *state) error {
		inv, ok := st.invitations.rows[id]
		if !ok || inv.Status != model.InvitationPending {
			return repository.ErrTxConflict
		}
		inv.Status = status
		inv.RespondedAt = &at
		st.invitations.put(id, inv)
		return nil
	})
}

func (r invitationRepo) filter(keep func(model.Invitation) bool) []model.Invitation {
	out := []model.Invitation{}
	r.t.read(func(st *state) {
		for _, inv := range st.invitations.rows {
			if keep(inv) {
				out = append(out, inv)
			}
		}
	})
	return out
}

func byIssued(a, b model.Invitation) int {
	if c := a.IssuedAt.Compare(b.IssuedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (r invitationRepo) ListByEvent(_ context.Context, eventID string, status model.InvitationStatus) ([]model.Invitation, error) {
	out := r.filter(func(inv model.Invitation) bool {
		return inv.EventID == eventID && (status == "" || inv.Status == status)
	})
	slices.SortFunc(out, byIssued)
	return out, nil
}

func (r invitationRepo) ListByEntrant(_ context.Context, entrantID string) ([]model.Invitation, error) {
	out := r.filter(func(inv model.Invitation) bool { return inv.EntrantID == entrantID })
	slices.SortFunc(out, func(a, b model.Invitation) int {
		if c := b.IssuedAt.Compare(a.IssuedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r invitationRepo) CountPending(ctx context.Context, eventID string) (int, error) {
	list, err := r.ListByEvent(ctx, eventID, model.InvitationPending)
	return len(list), err
}

func (r invitationRepo) ListOverdue(_ context.Context, eventID string, now time.Time) ([]model.Invitation, error) {
	out := r.filter(func(inv model.Invitation) bool { return inv.EventID == eventID && inv.Overdue(now) })
	slices.SortFunc(out, func(a, b model.Invitation) int {
		if c := a.ReplyBy.Compare(b.ReplyBy); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r invitationRepo) PendingEventIDs(_ context.Context, entrantID string) ([]string, error) {
	ids := []string{}
	for _, inv := range r.filter(func(inv model.Invitation) bool {
		return inv.EntrantID == entrantID && inv.Status == model.InvitationPending
	}) {
		if !slices.Contains(ids, inv.EventID) {
			ids = append(ids, inv.EventID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

type registrationRepo struct{ t *txn }

func (r registrationRepo) filter(keep func(model.Registration) bool) []model.Registration {
	out := []model.Registration{}
	r.t.read(func(st *state) {
		for _, reg := range st.registrations.rows {
			if keep(reg) {
				out = append(out, reg)
			}
		}
	})
	slices.SortFunc(out, func(a, b model.Registration) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (r registrationRepo) GetActive(_ context.Context, eventID, entrantID string) (*model.Registration, error) {
	list := r.filter(func(reg model.Registration) bool {
		return reg.EventID == eventID && reg.EntrantID == entrantID && reg.Status == model.RegistrationActive
	})
	if len(list) == 0 {
		return nil, repository.ErrNotFound
	}
	return &list[0], nil
}

func (r registrationRepo) GetLatest(_ context.Context, eventID, entrantID string) (*model.Registration, error) {
	list := r.filter(func(reg model.Registration) bool {
		return reg.EventID == eventID && reg.EntrantID == entrantID
	})
	if len(list) == 0 {
		return nil, repository.ErrNotFound
	}
	return &list[len(list)-1], nil
}

func (r registrationRepo) Create(_ context.Context, reg *model.Registration) error {
	return r.t.write(func(st *state) error {
		for _, cur := range st.registrations.rows {
			if cur.ID == reg.ID {
				return fmt.Errorf("%w: registration %s", repository.ErrDuplicate, reg.ID)
			}
			if reg.Status == model.RegistrationActive && cur.Status == model.RegistrationActive &&
				cur.EventID == reg.EventID && cur.EntrantID == reg.EntrantID {
				return fmt.Errorf("%w: active registration %s/%s", repository.ErrDuplicate, reg.EventID, reg.EntrantID)
			}
		}
		st.registrations.put(reg.ID, *reg)
		return nil
	})
}

func (r registrationRepo) Cancel(_ context.Context, id string, status model.RegistrationStatus, at time.Time) error {
	return r.t.write(func(st *state) error {
		reg, ok := st.registrations.rows[id]
		if !ok || reg.Status != model.RegistrationActive {
			return repository.ErrTxConflict
		}
		reg.Status = status
		reg.CancelledAt = &at
		st.registrations.put(id, reg)
		return nil
	})
}

func (r registrationRepo) ListByEvent(_ context.Context, eventID string, status model.RegistrationStatus) ([]model.Registration, error) {
	return r.filter(func(reg model.Registration) bool {
		return reg.EventID == eventID && (status == "" || reg.Status == status)
	}), nil
}

func (r registrationRepo) CountActive(ctx context.Context, eventID string) (int, error) {
	list, err := r.ListByEvent(ctx, eventID, model.RegistrationActive)
	return len(list), err
}
