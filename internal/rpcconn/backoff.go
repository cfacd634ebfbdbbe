package rpcconn

import "time"

// backoffDelay returns the delay to wait before the (attempt+1)-th connect
// attempt, given attempt failed attempts so far and a base connection
// timeout: delay = min(base * 2^(attempt-1), 10*base), so for base=7s the
// sequence across attempts 1..N is 7, 14, 28, 56, 70, 70, 70, ... — the cap
// is sticky once reached.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	capDur := base * 10
	if attempt <= 1 {
		return base
	}
	// 2^4 = 16 already exceeds the 10x cap for any base, so there is no
	// need to compute (and risk overflowing) larger powers.
	if attempt-1 >= 4 {
		return capDur
	}
	mult := time.Duration(int64(1) << uint(attempt-1))
	d := base * mult
	if d > capDur {
		return capDur
	}
	return d
}
