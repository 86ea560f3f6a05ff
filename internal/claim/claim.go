// Package claim enforces the page status lifecycle and ownership rules.
// All mutations go through the store's conditional transitions; this
// package decides which transition applies, adjusts the book's completed
// counter by exactly one signed step per logical status change, and
// settles point rewards.
package claim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pagewright/scriptorium/internal/auth"
	"github.com/pagewright/scriptorium/internal/store"
)

// Error taxonomy surfaced to callers. Endpoints map these to HTTP codes.
var (
	// ErrNotFound is returned when the book or page does not exist.
	ErrNotFound = errors.New("page not found")

	// ErrConflict is returned when a claim races against another editor's
	// claim on the same page.
	ErrConflict = errors.New("page is claimed by another editor")

	// ErrInvalidState is returned when the operation is not valid for the
	// page's current status.
	ErrInvalidState = errors.New("operation not valid in current page status")

	// ErrUnauthorized is returned when the principal does not own the page
	// and lacks admin rights.
	ErrUnauthorized = errors.New("page is not owned by this principal")
)

// Point rewards per transition. Uncomplete deducts the completion reward
// exactly.
const (
	ClaimReward    = 5
	CompleteReward = 10
)

// Service is the unit every other component calls to mutate a page.
type Service struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a claim service over the given store.
func NewService(st *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Claim assigns editing ownership of a page to the principal.
//
// Allowed when the page is available, or already owned by the principal
// (idempotent re-claim). A page owned by a different principal yields
// ErrConflict — admins included: seizing in-flight work requires an
// explicit release first.
func (s *Service) Claim(ctx context.Context, bookSlug string, pageNumber int, p auth.Principal) (store.Page, error) {
	book, err := s.store.GetBookBySlug(ctx, bookSlug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Page{}, ErrNotFound
		}
		return store.Page{}, err
	}
	page, err := s.store.GetPageByNumber(ctx, book.ID, pageNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Page{}, ErrNotFound
		}
		return store.Page{}, err
	}

	now := s.now()

	applied, err := s.store.ClaimIfAvailable(ctx, page.ID, p.ID, now)
	if err != nil {
		return store.Page{}, err
	}
	if applied {
		if err := s.store.AddPoints(ctx, p.ID, ClaimReward); err != nil {
			s.logger.Error("claim reward not recorded", "page", page.ID, "principal", p.ID, "error", err)
		}
		s.logger.Info("page claimed", "book", book.Slug, "page", pageNumber, "principal", p.ID)
		return s.store.GetPage(ctx, page.ID)
	}

	// Owner re-opening their own completed page: the page leaves the
	// completed set, so the counter owes exactly one decrement.
	applied, err = s.store.ReopenIfCompletedOwner(ctx, page.ID, p.ID, now)
	if err != nil {
		return store.Page{}, err
	}
	if applied {
		if err := s.store.AdjustCompletedPages(ctx, book.ID, -1); err != nil {
			s.logger.Error("completed counter not decremented", "book", book.ID, "error", err)
		}
		s.logger.Info("completed page reopened", "book", book.Slug, "page", pageNumber, "principal", p.ID)
		return s.store.GetPage(ctx, page.ID)
	}

	// Retried claim by the current owner is a no-op success, not a conflict.
	applied, err = s.store.ReclaimIfOwner(ctx, page.ID, p.ID, now)
	if err != nil {
		return store.Page{}, err
	}
	if applied {
		return s.store.GetPage(ctx, page.ID)
	}

	return store.Page{}, ErrConflict
}

// Complete marks an in-progress page the principal owns as completed.
// Admins may complete any available or in-progress page; leaveUnclaimed
// keeps a previously unclaimed page unclaimed instead of assigning it to
// the admin. Completing an already-completed page is a no-op success and
// must not increment the counter or award points again.
func (s *Service) Complete(ctx context.Context, pageID string, p auth.Principal, leaveUnclaimed bool) (store.Page, error) {
	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Page{}, ErrNotFound
		}
		return store.Page{}, err
	}

	now := s.now()

	applied, err := s.store.CompleteIfOwner(ctx, pageID, p.ID, now)
	if err != nil {
		return store.Page{}, err
	}
	if applied {
		s.settleCompletion(ctx, page.BookID, p.ID)
		s.logger.Info("page completed", "page", pageID, "principal", p.ID)
		return s.store.GetPage(ctx, pageID)
	}

	if p.Admin {
		// Refresh before deciding: the owner path above may have lost a
		// race against a transition that already completed the page.
		page, err = s.store.GetPage(ctx, pageID)
		if err != nil {
			return store.Page{}, err
		}
		if page.Status == store.StatusCompleted {
			return page, nil
		}
		assignTo := p.ID
		if leaveUnclaimed {
			assignTo = ""
		}
		applied, err = s.store.ForceComplete(ctx, pageID, assignTo, now)
		if err != nil {
			return store.Page{}, err
		}
		if applied {
			rewarded := page.ClaimedBy
			if rewarded == "" {
				rewarded = assignTo
			}
			s.settleCompletion(ctx, page.BookID, rewarded)
			s.logger.Info("page force-completed", "page", pageID, "admin", p.ID, "assigned_to", assignTo)
			return s.store.GetPage(ctx, pageID)
		}
		return store.Page{}, ErrInvalidState
	}

	page, err = s.store.GetPage(ctx, pageID)
	if err != nil {
		return store.Page{}, err
	}
	switch {
	case page.Status == store.StatusCompleted && page.ClaimedBy == p.ID:
		// Idempotent retry of a complete that already applied.
		return page, nil
	case page.Status == store.StatusAvailable:
		return store.Page{}, ErrInvalidState
	default:
		return store.Page{}, ErrUnauthorized
	}
}

// settleCompletion applies the counter increment and reward for exactly
// one available/in-progress -> completed transition.
func (s *Service) settleCompletion(ctx context.Context, bookID, rewarded string) {
	if err := s.store.AdjustCompletedPages(ctx, bookID, 1); err != nil {
		s.logger.Error("completed counter not incremented", "book", bookID, "error", err)
	}
	if rewarded == "" {
		return
	}
	if err := s.store.AddPoints(ctx, rewarded, CompleteReward); err != nil {
		s.logger.Error("completion reward not recorded", "principal", rewarded, "error", err)
	}
}

// Uncomplete reverts a completed page the principal owns to in-progress,
// undoing the completion's counter increment and point award exactly.
func (s *Service) Uncomplete(ctx context.Context, pageID string, p auth.Principal) (store.Page, error) {
	applied, err := s.store.UncompleteIfOwner(ctx, pageID, p.ID)
	if err != nil {
		return store.Page{}, err
	}
	if !applied {
		page, err := s.store.GetPage(ctx, pageID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return store.Page{}, ErrNotFound
			}
			return store.Page{}, err
		}
		if page.Status != store.StatusCompleted {
			return store.Page{}, ErrInvalidState
		}
		return store.Page{}, ErrUnauthorized
	}

	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		return store.Page{}, err
	}
	if err := s.store.AdjustCompletedPages(ctx, page.BookID, -1); err != nil {
		s.logger.Error("completed counter not decremented", "book", page.BookID, "error", err)
	}
	if err := s.store.AddPoints(ctx, p.ID, -CompleteReward); err != nil {
		s.logger.Error("completion reward not reversed", "principal", p.ID, "error", err)
	}
	s.logger.Info("page uncompleted", "page", pageID, "principal", p.ID)
	return page, nil
}

// Release returns a page to available, clearing ownership and timestamps.
// Owners may release their own page in any status; admins may release any
// page. Releasing a completed page decrements the completed counter.
func (s *Service) Release(ctx context.Context, pageID string, p auth.Principal) (store.Page, error) {
	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Page{}, ErrNotFound
		}
		return store.Page{}, err
	}

	if page.Status == store.StatusAvailable {
		// Nothing held; releasing is idempotent.
		return page, nil
	}
	if !p.Admin && page.ClaimedBy != p.ID {
		return store.Page{}, ErrUnauthorized
	}

	release := func(from store.Status) (bool, error) {
		if p.Admin && page.ClaimedBy != p.ID {
			return s.store.ForceRelease(ctx, pageID, from)
		}
		return s.store.ReleaseIfOwner(ctx, pageID, p.ID, from)
	}

	applied, err := release(store.StatusCompleted)
	if err != nil {
		return store.Page{}, err
	}
	if applied {
		if err := s.store.AdjustCompletedPages(ctx, page.BookID, -1); err != nil {
			s.logger.Error("completed counter not decremented", "book", page.BookID, "error", err)
		}
		s.logger.Info("page released", "page", pageID, "principal", p.ID, "was", store.StatusCompleted)
		return s.store.GetPage(ctx, pageID)
	}

	applied, err = release(store.StatusInProgress)
	if err != nil {
		return store.Page{}, err
	}
	if applied {
		s.logger.Info("page released", "page", pageID, "principal", p.ID, "was", store.StatusInProgress)
		return s.store.GetPage(ctx, pageID)
	}

	// Lost a race against another transition; report the page as it is now.
	return store.Page{}, fmt.Errorf("release page %s: %w", pageID, ErrConflict)
}

// SaveText stores transcription content for a page the principal is
// actively editing. The ownership check and the write are one conditional
// update, the same discipline as status transitions.
func (s *Service) SaveText(ctx context.Context, pageID string, p auth.Principal, text string) (store.Page, error) {
	applied, err := s.store.SaveTranscription(ctx, pageID, p.ID, text)
	if err != nil {
		return store.Page{}, err
	}
	if !applied {
		page, err := s.store.GetPage(ctx, pageID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return store.Page{}, ErrNotFound
			}
			return store.Page{}, err
		}
		if page.Status != store.StatusInProgress {
			return store.Page{}, ErrInvalidState
		}
		return store.Page{}, ErrUnauthorized
	}
	return s.store.GetPage(ctx, pageID)
}
