// Package limiters provides domain-specific rate limiters backed by Redis
// fixed windows.
//
// # Limiters
//
//   - [OTPLimiter] — per-purpose reissue cooldown plus optional per-IP verify throttle.
//   - [RecoveryLimiter] — per-IP throttle for reset submissions.
//   - [LoginLimiter] — per-identifier + optional per-IP throttle for login calls.
//
// # Architecture boundaries
//
// Each limiter owns its own Redis key namespace and error types. Policy
// thresholds come from Config structs supplied at construction time.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Make policy decisions beyond counting — the Engine decides consequences.
package limiters
