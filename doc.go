// Package authcore provides a multi-role signup, login, and password-recovery
// engine with purpose-tagged OTP challenges, Redis-backed single-use reset
// sessions, and argon2id credential storage.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config], and value types
// (SignupResult, VerifyOTPResult, MetricsSnapshot, etc.). All internal coordination —
// challenge encoding, reset-session CAS, rate limiting, audit dispatch — lives under
// internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//   - Deliver OTP codes itself; delivery goes through the caller's [OTPSender].
//   - Import any sub-package that re-imports authcore (no import cycles).
//
// # Performance contract
//
// VerifyOTP is the hot path. Consumption is a single Redis script call; the constant-time
// hash comparison after it adds no round-trip. IssueOTP, Login, and the recovery steps are
// allowed one limiter round-trip plus one store round-trip per call.
package authcore
