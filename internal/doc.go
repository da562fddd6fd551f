// Package internal contains helper utilities that are intentionally private
// to authcore, including secure random generation for one-time codes and
// reset token encoding.
//
// # Sub-packages
//
//   - limiters — domain-specific rate limiters (OTP issue/verify, recovery, login)
//   - stores — Redis-backed single-use challenge and session records
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
