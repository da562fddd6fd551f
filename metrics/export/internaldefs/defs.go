package internaldefs

import (
	"github.com/propspace/authcore"
)

// CounterDef defines a public type used by authcore APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by authcore APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricOTPIssued, Name: "authcore_otp_issued_total", Help: "One-time codes issued."},
	{ID: authcore.MetricOTPIssueRateLimited, Name: "authcore_otp_issue_rate_limited_total", Help: "OTP issue requests denied by cooldown or IP throttle."},
	{ID: authcore.MetricOTPDeliveryFailed, Name: "authcore_otp_delivery_failed_total", Help: "OTP delivery failures reported by the sender."},
	{ID: authcore.MetricOTPVerifySuccess, Name: "authcore_otp_verify_success_total", Help: "Successful OTP verifications."},
	{ID: authcore.MetricOTPVerifyFailure, Name: "authcore_otp_verify_failure_total", Help: "Failed OTP verifications."},
	{ID: authcore.MetricOTPAttemptsExceeded, Name: "authcore_otp_attempts_exceeded_total", Help: "OTP challenges invalidated due to attempt cap."},
	{ID: authcore.MetricOwnershipVerified, Name: "authcore_ownership_verified_total", Help: "Successful email+mobile ownership checks."},
	{ID: authcore.MetricOwnershipFailure, Name: "authcore_ownership_failure_total", Help: "Failed email+mobile ownership checks."},
	{ID: authcore.MetricRecoverySessionOpened, Name: "authcore_recovery_session_opened_total", Help: "Recovery sessions opened after verification."},
	{ID: authcore.MetricRecoveryResetSuccess, Name: "authcore_recovery_reset_success_total", Help: "Successful password resets."},
	{ID: authcore.MetricRecoveryResetFailure, Name: "authcore_recovery_reset_failure_total", Help: "Failed password reset submissions."},
	{ID: authcore.MetricRecoveryReplay, Name: "authcore_recovery_replay_total", Help: "Reset submissions against consumed or unknown sessions."},
	{ID: authcore.MetricRecoveryAbandoned, Name: "authcore_recovery_abandoned_total", Help: "Recovery sessions abandoned before completion."},
	{ID: authcore.MetricWeakPasswordRejected, Name: "authcore_weak_password_rejected_total", Help: "Passwords rejected by the strength policy."},
	{ID: authcore.MetricSignupSuccess, Name: "authcore_signup_success_total", Help: "Successful account creations."},
	{ID: authcore.MetricSignupDuplicate, Name: "authcore_signup_duplicate_total", Help: "Signup attempts rejected as duplicate."},
	{ID: authcore.MetricSignupFailure, Name: "authcore_signup_failure_total", Help: "Failed signup attempts."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful login attempts."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed login attempts."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authcore.MetricApprovalChanged, Name: "authcore_approval_changed_total", Help: "Admin approval decisions applied."},
	{ID: authcore.MetricRateLimitHit, Name: "authcore_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs is an exported constant or variable used by the authentication engine.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricVerifyLatency, Name: "authcore_verify_latency_seconds", Help: "OTP verify latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the authentication engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the authentication engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies a raw bucket slice into the fixed 8-slot layout.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
