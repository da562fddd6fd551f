package authcore

import (
	"errors"
	"time"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	OTP            OTPConfig
	Recovery       RecoveryConfig
	Password       PasswordConfig
	PasswordPolicy PasswordPolicyConfig
	Signup         SignupConfig
	Login          LoginConfig
	JWT            JWTConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls one-time code issuance and verification. Cooldowns are
// asymmetric on purpose: signup retries are cheap, forgot-password retries
// are an enumeration surface.
type OTPConfig struct {
	Digits                 int
	TTL                    time.Duration
	MaxAttempts            int
	SignupCooldown         time.Duration
	ForgotPasswordCooldown time.Duration
	EnableIPThrottle       bool
	IPMaxAttempts          int
	IPWindow               time.Duration
	RedisPrefix            string
}

// CooldownFor returns the reissue cooldown for the given purpose.
func (c OTPConfig) CooldownFor(p OTPPurpose) time.Duration {
	if p == PurposeForgotPassword {
		return c.ForgotPasswordCooldown
	}
	return c.SignupCooldown
}

/*
====================================
RECOVERY CONFIG
====================================
*/

// RecoveryConfig defines a public type used by authcore APIs.
//
// RecoveryConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RecoveryConfig struct {
	SessionTTL       time.Duration
	MaxAttempts      int
	EnableIPThrottle bool
	IPMaxAttempts    int
	IPWindow         time.Duration
	RedisPrefix      string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authcore APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordPolicyConfig defines the strength rules enforced before any
// password is hashed. Violations are reported itemized, not first-fail.
type PasswordPolicyConfig struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSymbol    bool
}

/*
====================================
SIGNUP / LOGIN CONFIG
====================================
*/

// SignupConfig defines a public type used by authcore APIs.
//
// SignupConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SignupConfig struct {
	DefaultRole           Role
	AdminApprovalRequired bool
}

// LoginConfig defines a public type used by authcore APIs.
//
// LoginConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoginConfig struct {
	MaxAttempts      int
	Cooldown         time.Duration
	EnableIPThrottle bool
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by authcore APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		OTP: OTPConfig{
			Digits:                 6,
			TTL:                    5 * time.Minute,
			MaxAttempts:            5,
			SignupCooldown:         30 * time.Second,
			ForgotPasswordCooldown: 120 * time.Second,
			EnableIPThrottle:       true,
			IPMaxAttempts:          20,
			IPWindow:               15 * time.Minute,
			RedisPrefix:            "ao",
		},
		Recovery: RecoveryConfig{
			SessionTTL:       10 * time.Minute,
			MaxAttempts:      5,
			EnableIPThrottle: true,
			IPMaxAttempts:    20,
			IPWindow:         15 * time.Minute,
			RedisPrefix:      "ar",
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		PasswordPolicy: PasswordPolicyConfig{
			MinLength:        8,
			RequireUppercase: true,
			RequireLowercase: true,
			RequireDigit:     true,
			RequireSymbol:    true,
		},
		Signup: SignupConfig{
			DefaultRole:           RoleUser,
			AdminApprovalRequired: true,
		},
		Login: LoginConfig{
			MaxAttempts:      5,
			Cooldown:         15 * time.Minute,
			EnableIPThrottle: true,
		},
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "ed25519",
			Issuer:        "authcore",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// OTP
	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		return errors.New("OTP Digits must be between 6 and 10")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}
	if c.OTP.TTL > 15*time.Minute {
		return errors.New("OTP TTL must be <= 15m")
	}
	if c.OTP.MaxAttempts <= 0 || c.OTP.MaxAttempts > 5 {
		return errors.New("OTP MaxAttempts must be between 1 and 5")
	}
	if c.OTP.SignupCooldown <= 0 {
		return errors.New("OTP SignupCooldown must be > 0")
	}
	if c.OTP.ForgotPasswordCooldown <= 0 {
		return errors.New("OTP ForgotPasswordCooldown must be > 0")
	}
	if c.OTP.EnableIPThrottle {
		if c.OTP.IPMaxAttempts <= 0 {
			return errors.New("OTP IPMaxAttempts must be > 0 when IP throttle is enabled")
		}
		if c.OTP.IPWindow <= 0 {
			return errors.New("OTP IPWindow must be > 0 when IP throttle is enabled")
		}
	}

	// Recovery
	if c.Recovery.SessionTTL <= 0 {
		return errors.New("Recovery SessionTTL must be > 0")
	}
	if c.Recovery.SessionTTL > time.Hour {
		return errors.New("Recovery SessionTTL must be <= 1h")
	}
	if c.Recovery.MaxAttempts <= 0 {
		return errors.New("Recovery MaxAttempts must be > 0")
	}
	if c.Recovery.EnableIPThrottle {
		if c.Recovery.IPMaxAttempts <= 0 {
			return errors.New("Recovery IPMaxAttempts must be > 0 when IP throttle is enabled")
		}
		if c.Recovery.IPWindow <= 0 {
			return errors.New("Recovery IPWindow must be > 0 when IP throttle is enabled")
		}
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Password policy
	if c.PasswordPolicy.MinLength < 8 {
		return errors.New("PasswordPolicy MinLength must be >= 8")
	}

	// Signup
	switch c.Signup.DefaultRole {
	case RoleUser, RoleAdmin:
		// valid
	default:
		return errors.New("Signup DefaultRole must be user or admin")
	}

	// Login
	if c.Login.MaxAttempts <= 0 {
		return errors.New("Login MaxAttempts must be > 0")
	}
	if c.Login.Cooldown <= 0 {
		return errors.New("Login Cooldown must be > 0")
	}

	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("hs256 requires PrivateKey")
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}
