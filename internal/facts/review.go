package facts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReviewDecision is the reviewer's verdict on a verification item.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionReject  ReviewDecision = "reject"
	DecisionModify  ReviewDecision = "modify"
)

// ReviewEdits carries the reviewer's corrections for a modify
// decision. Empty fields keep the stored value.
type ReviewEdits struct {
	Subject   string
	Predicate string
	Object    string
	Category  Category
	Notes     string
}

// ResolveReview applies a reviewer's decision to a pending
// verification item and its fact:
//
//   - reject: the fact archives (outdated), the item closes rejected.
//   - approve: the fact verifies as stored.
//   - modify: the reviewer's edits apply first (re-normalized), then
//     the fact verifies.
//
// Approving an identity claim additionally retires competing
// unverified claims on the same (subject, predicate): a human signed
// off on this one, so the unconfirmed alternatives archive.
func (s *Store) ResolveReview(ctx context.Context, reviewID uuid.UUID, decision ReviewDecision, reviewer string, edits *ReviewEdits) (*Fact, error) {
	item, err := s.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if item.Status != ReviewPending {
		return nil, fmt.Errorf("review %s already resolved (%s)", reviewID, item.Status)
	}
	if item.Type != ReviewTypeVerification {
		return nil, fmt.Errorf("review %s is not a verification item (%s)", reviewID, item.Type)
	}
	f, err := s.Get(ctx, item.FactID)
	if err != nil {
		return nil, fmt.Errorf("loading fact for review %s: %w", reviewID, err)
	}

	switch decision {
	case DecisionReject:
		// A rejection is still a verification event: the fact carries
		// who ruled on it and when, same as an approval.
		now := time.Now().UTC()
		f.VerifiedBy = reviewer
		f.VerifiedAt = &now
		if f.Active() {
			if err := s.transitionStatus(ctx, f, StatusOutdated); err != nil {
				return nil, err
			}
		} else if err := s.saveFact(ctx, f); err != nil {
			return nil, err
		}
		if err := s.closeReview(ctx, item, ReviewRejected, "rejected by "+reviewer); err != nil {
			return nil, err
		}
		s.logger.Info("fact rejected", "fact_id", f.ID, "reviewer", reviewer)
		return f, nil

	case DecisionApprove, DecisionModify:
		if decision == DecisionModify && edits != nil {
			applyEdits(f, edits)
		}
		now := time.Now().UTC()
		f.VerifiedBy = reviewer
		f.VerifiedAt = &now
		if f.Status != StatusVerified {
			next, err := Transition(f.Status, StatusVerified)
			if err != nil {
				return nil, err
			}
			f.Status = next
		}
		if err := s.saveFact(ctx, f); err != nil {
			return nil, err
		}
		if err := s.closeReview(ctx, item, ReviewApproved, string(decision)+" by "+reviewer); err != nil {
			return nil, err
		}
		if f.Subject == "user" && f.Predicate == "is" {
			if _, err := s.retireUnverifiedCompetitors(ctx, f); err != nil {
				return nil, err
			}
		}
		s.logger.Info("fact verified",
			"fact_id", f.ID,
			"reviewer", reviewer,
			"modified", decision == DecisionModify,
		)
		return f, nil

	default:
		return nil, fmt.Errorf("unknown review decision %q", decision)
	}
}

func applyEdits(f *Fact, edits *ReviewEdits) {
	if edits.Category.Valid() {
		f.Category = edits.Category
	}
	if edits.Subject != "" {
		f.Subject = edits.Subject
	}
	if edits.Predicate != "" {
		f.Predicate = edits.Predicate
	}
	if edits.Object != "" {
		f.Object = edits.Object
	}
	f.Subject, f.Predicate, f.Object = NormalizeTriple(f.Subject, f.Predicate, f.Object, f.Category)
	if edits.Notes != "" {
		f.Notes = edits.Notes
	}
}

// retireUnverifiedCompetitors archives unverified facts that share the
// winner's (subject, predicate) but disagree on the object. Verified
// competitors are left alone: two human-approved claims disagreeing is
// a reviewer problem, not something to resolve silently.
func (s *Store) retireUnverifiedCompetitors(ctx context.Context, winner *Fact) (int, error) {
	competitors, err := s.listBySubjectPredicate(ctx, winner.Subject, winner.Predicate)
	if err != nil {
		return 0, err
	}
	retired := 0
	for _, c := range competitors {
		if c.ID == winner.ID || c.Status != StatusUnverified {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(c.Object), strings.TrimSpace(winner.Object)) {
			continue
		}
		if err := s.transitionStatus(ctx, c, StatusOutdated); err != nil {
			return retired, fmt.Errorf("retiring competitor %s: %w", c.ID, err)
		}
		retired++
	}
	return retired, nil
}

// PendingReviews lists open verification items, oldest first, for the
// gateway's review surface.
func (s *Store) PendingReviews(ctx context.Context, limit int) ([]*ReviewItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+reviewCols+`
		 FROM objects
		 WHERE collection = $1 AND status = $2 AND payload->>'type' = $3
		 ORDER BY created_at ASC
		 LIMIT $4`,
		collectionReviews, string(ReviewPending), ReviewTypeVerification, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing pending reviews: %w", err)
	}
	defer rows.Close()

	var out []*ReviewItem
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning review: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reviews: %w", err)
	}
	return out, nil
}
