package saml

// clockDriftEpsilon is added to any caller-configured allowed clock drift
// to prevent boundary flaps when a timestamp lands exactly on a
// NotBefore/NotOnOrAfter edge.
const clockDriftEpsilon = 0.5 // seconds

func effectiveDrift(allowedClockDrift float64) float64 {
	d := allowedClockDrift
	if d < 0 {
		d = -d
	}
	return d + clockDriftEpsilon
}
