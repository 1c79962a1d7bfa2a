package user

// DefaultRiskThreshold is the number of consecutive failed password checks
// after which a login needs a human-verification token.
const DefaultRiskThreshold = 3

// RiskGate decides when login escalates to a CAPTCHA challenge. The counter
// itself lives on the account and is only reset by a successful password
// check or a password reset; it does not decay over time.
type RiskGate struct {
	Threshold int
}

func NewRiskGate(threshold int) RiskGate {
	if threshold <= 0 {
		threshold = DefaultRiskThreshold
	}
	return RiskGate{Threshold: threshold}
}

// Challenged reports whether an account with this many failures must pass
// human verification before its password is checked.
func (g RiskGate) Challenged(attempts int) bool {
	return attempts >= g.Threshold
}
