package services

import (
	"crypto/rand"
	"math/big"

	"chamahub/internal/adapters/persistence/models"
	"chamahub/internal/core/domain"
)

// buildRoster orders the active members of a chama for a new cycle.
// The result is the payout order: index 0 receives position 1.
func buildRoster(method domain.RosterMethod, members []*models.ChamaMember, manual []uint) ([]*models.ChamaMember, error) {
	switch method {
	case domain.RosterRandom:
		out := append([]*models.ChamaMember(nil), members...)
		if err := shuffle(out); err != nil {
			return nil, err
		}
		return out, nil

	case domain.RosterTrust:
		return trustOrder(members)

	case domain.RosterManual:
		return manualOrder(members, manual)
	}
	return nil, domain.InvalidFields(map[string]string{"roster_method": "must be RANDOM, TRUST or MANUAL"})
}

// trustOrder places high trust members first. Each tier is shuffled.
func trustOrder(members []*models.ChamaMember) ([]*models.ChamaMember, error) {
	var high, mid, low []*models.ChamaMember
	for _, m := range members {
		score := domain.DefaultTrust
		if m.User != nil {
			score = m.User.TrustScore
		}
		switch {
		case score >= domain.TrustHighMin:
			high = append(high, m)
		case score >= domain.TrustMediumMin:
			mid = append(mid, m)
		default:
			low = append(low, m)
		}
	}

	out := make([]*models.ChamaMember, 0, len(members))
	for _, tier := range [][]*models.ChamaMember{high, mid, low} {
		if err := shuffle(tier); err != nil {
			return nil, err
		}
		out = append(out, tier...)
	}
	return out, nil
}

// manualOrder follows the caller's list, which must name every member exactly once
func manualOrder(members []*models.ChamaMember, order []uint) ([]*models.ChamaMember, error) {
	if len(order) != len(members) {
		return nil, domain.ErrInvalidManualRoster
	}

	byUser := make(map[uint]*models.ChamaMember, len(members))
	for _, m := range members {
		byUser[m.UserID] = m
	}

	out := make([]*models.ChamaMember, 0, len(order))
	for _, userID := range order {
		m, ok := byUser[userID]
		if !ok {
			return nil, domain.ErrInvalidManualRoster
		}
		delete(byUser, userID)
		out = append(out, m)
	}
	return out, nil
}

// shuffle is a Fisher-Yates shuffle driven by crypto/rand
func shuffle[T any](items []T) error {
	for i := len(items) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return err
		}
		j := int(n.Int64())
		items[i], items[j] = items[j], items[i]
	}
	return nil
}
