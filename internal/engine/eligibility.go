package engine

import (
	"fmt"
	"time"

	"github.com/parcelguard/claimwatch/internal/models"
	"github.com/parcelguard/claimwatch/internal/utils"
)

// EligibilityPolicy holds the silence thresholds after which a shipment qualifies for a claim.
type EligibilityPolicy struct {
	DomesticDays      int
	InternationalDays int
}

// DefaultEligibilityPolicy returns 15 days domestic and 20 days international.
func DefaultEligibilityPolicy() EligibilityPolicy {
	return EligibilityPolicy{DomesticDays: 15, InternationalDays: 20}
}

// Threshold returns the silence threshold for a shipment.
func (p EligibilityPolicy) Threshold(international bool) int {
	if international {
		return p.InternationalDays
	}
	return p.DomesticDays
}

// EligibleAfter is the date a shipment becomes claim-eligible if nothing else is scanned.
func (p EligibilityPolicy) EligibleAfter(anchor time.Time, international bool) time.Time {
	return utils.AddDays(anchor, p.Threshold(international))
}

// EligibilityInput is the state NextEligibility evaluates. Claim is the shipment's active
// (non-voided) claim ticket, if any. An empty Current means the shipment is being enrolled.
type EligibilityInput struct {
	Current             models.EligibilityStatus
	International       bool
	DaysSinceLastUpdate int
	Claim               *models.ClaimTicket
}

// Transition is the outcome of NextEligibility.
type Transition struct {
	Status  models.EligibilityStatus
	Changed bool
	Reason  string
}

// NextEligibility advances a monitoring record through at_risk → eligible → claim_filed →
// approved|denied. Terminal states never move and no state moves backwards.
func NextEligibility(policy EligibilityPolicy, in EligibilityInput) Transition {
	current := in.Current
	if current == "" {
		current = models.EligibilityAtRisk
	}
	stay := func(reason string) Transition {
		return Transition{Status: current, Changed: current != in.Current, Reason: reason}
	}
	move := func(to models.EligibilityStatus, reason string) Transition {
		return Transition{Status: to, Changed: to != in.Current, Reason: reason}
	}

	if current.Terminal() {
		return stay("terminal status")
	}

	if in.Claim != nil && !in.Claim.Voided {
		switch in.Claim.Status {
		case models.ClaimResolved:
			return move(models.EligibilityApproved, fmt.Sprintf("claim %s resolved", in.Claim.ID))
		case models.ClaimCreditDenied:
			return move(models.EligibilityDenied, fmt.Sprintf("claim %s credit denied", in.Claim.ID))
		default:
			if current == models.EligibilityClaimFiled {
				return stay("claim under way")
			}
			return move(models.EligibilityClaimFiled, fmt.Sprintf("claim %s on file", in.Claim.ID))
		}
	}

	switch current {
	case models.EligibilityClaimFiled:
		return stay("claim filed")
	case models.EligibilityEligible:
		return stay("already eligible")
	}

	threshold := policy.Threshold(in.International)
	if in.DaysSinceLastUpdate >= threshold {
		return move(models.EligibilityEligible, fmt.Sprintf("%d days without update (threshold %d)", in.DaysSinceLastUpdate, threshold))
	}
	return stay(fmt.Sprintf("%d of %d days without update", in.DaysSinceLastUpdate, threshold))
}
