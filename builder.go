package authcore

import (
	"errors"

	"github.com/propspace/authcore/internal/limiters"
	"github.com/propspace/authcore/internal/stores"
	"github.com/propspace/authcore/jwt"
	"github.com/propspace/authcore/password"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by authcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts  AccountProvider
	sender    OTPSender
	auditSink AuditSink

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing challenge stores and limiters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountProvider supplies the account database integration.
func (b *Builder) WithAccountProvider(ap AccountProvider) *Builder {
	b.accounts = ap
	return b
}

// WithSender supplies the OTP delivery channel.
func (b *Builder) WithSender(s OTPSender) *Builder {
	b.sender = s
	return b
}

// WithAuditSink supplies the audit event destination.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithJWTKeys supplies the access-token signing keys. For ed25519 priv is
// the private key and pub the public key; for hs256 both are the shared
// secret.
func (b *Builder) WithJWTKeys(priv, pub []byte) *Builder {
	b.config.JWT.PrivateKey = cloneBytes(priv)
	b.config.JWT.PublicKey = cloneBytes(pub)
	return b
}

// WithJWTIssuer overrides the issuer claim stamped on access tokens.
func (b *Builder) WithJWTIssuer(issuer string) *Builder {
	b.config.JWT.Issuer = issuer
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles latency histogram recording.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every store, limiter, hasher,
// and token manager into a ready Engine. A Builder is single use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.accounts == nil {
		return nil, errors.New("account provider required")
	}
	if b.sender == nil {
		return nil, errors.New("otp sender required")
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		accounts: b.accounts,
		sender:   b.sender,
	}

	engine.otpStore = stores.NewOTPStore(b.redis, cfg.OTP.RedisPrefix)
	engine.resetStore = stores.NewResetSessionStore(b.redis, cfg.Recovery.RedisPrefix)
	engine.otpLimiter = limiters.NewOTPLimiter(b.redis, limiters.OTPConfig{
		EnableIPThrottle: cfg.OTP.EnableIPThrottle,
		IPMaxAttempts:    cfg.OTP.IPMaxAttempts,
		IPWindow:         cfg.OTP.IPWindow,
	})
	engine.recoveryLimiter = limiters.NewRecoveryLimiter(b.redis, limiters.RecoveryConfig{
		EnableIPThrottle: cfg.Recovery.EnableIPThrottle,
		IPMaxAttempts:    cfg.Recovery.IPMaxAttempts,
		IPWindow:         cfg.Recovery.IPWindow,
	})
	engine.loginLimiter = limiters.NewLoginLimiter(b.redis, limiters.LoginConfig{
		MaxAttempts:      cfg.Login.MaxAttempts,
		Cooldown:         cfg.Login.Cooldown,
		EnableIPThrottle: cfg.Login.EnableIPThrottle,
	})
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	b.built = true

	return engine, nil
}
