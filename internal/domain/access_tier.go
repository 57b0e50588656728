package domain

// AccessLevel names a point-range band of booking restrictions.
type AccessLevel string

const (
	AccessUnrestricted AccessLevel = "unrestricted"
	AccessWarning      AccessLevel = "warning"
	AccessLimited      AccessLevel = "limited"
	AccessRestricted   AccessLevel = "restricted"
	AccessBlocked      AccessLevel = "blocked"
)

// AccessTier describes what an account may do at its current balance.
// Limit is the cap on concurrent active appointments for customers and on
// service slots per day for providers; nil means uncapped.
type AccessTier struct {
	Level     AccessLevel `json:"level"`
	MinPoints int         `json:"min_points"`
	MaxPoints int         `json:"max_points"`
	Limit     *int        `json:"limit,omitempty"`
	AtRisk    bool        `json:"at_risk"`
	Blocked   bool        `json:"blocked"`
	Message   string      `json:"message,omitempty"`
}

// TierFor maps a balance to its restriction band. Bounds are inclusive.
func TierFor(kind AccountKind, points int) AccessTier {
	points = ClampPoints(points)
	switch {
	case points >= 81:
		return AccessTier{Level: AccessUnrestricted, MinPoints: 81, MaxPoints: 100}
	case points >= 71:
		return AccessTier{
			Level:     AccessWarning,
			MinPoints: 71,
			MaxPoints: 80,
			AtRisk:    kind == AccountKindCustomer,
			Message:   "Your account is at risk of booking restrictions.",
		}
	case points >= 61:
		return AccessTier{
			Level:     AccessLimited,
			MinPoints: 61,
			MaxPoints: 70,
			Limit:     intPtr(limitFor(kind, 2, 3)),
			AtRisk:    true,
			Message:   limitMessage(kind),
		}
	case points > DeactivationThreshold:
		return AccessTier{
			Level:     AccessRestricted,
			MinPoints: 51,
			MaxPoints: 60,
			Limit:     intPtr(limitFor(kind, 1, 2)),
			AtRisk:    true,
			Message:   limitMessage(kind),
		}
	default:
		return AccessTier{
			Level:     AccessBlocked,
			MinPoints: MinPenaltyPoints,
			MaxPoints: DeactivationThreshold,
			AtRisk:    true,
			Blocked:   true,
			Message:   "Your account is deactivated.",
		}
	}
}

func limitFor(kind AccountKind, customer, provider int) int {
	if kind == AccountKindProvider {
		return provider
	}
	return customer
}

func limitMessage(kind AccountKind) string {
	if kind == AccountKindProvider {
		return "Your daily service slots are limited."
	}
	return "Your concurrent appointments are limited."
}

func intPtr(v int) *int {
	return &v
}
