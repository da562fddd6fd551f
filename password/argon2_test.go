package password

import (
	"strings"
	"testing"
)

func secureConfig() Config {
	return Config{
		Memory:      65536,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := hasher.Verify("wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestHashUniqueSalts(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	h1, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	h2, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected distinct salts to produce distinct hashes")
	}
}

func TestVerifyHonorsEmbeddedParameters(t *testing.T) {
	weakHasher, err := NewArgon2(Config{
		Memory:      32768,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2(weak) error: %v", err)
	}

	hash, err := weakHasher.Hash("cross-config-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	// A hasher with different cost settings must still verify a hash made
	// with the parameters embedded in the PHC string.
	strongHasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2(strong) error: %v", err)
	}

	ok, err := strongHasher.Verify("cross-config-password", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected verification against embedded parameters to succeed")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	if _, err := hasher.Verify("password", "not-a-phc-hash"); err == nil {
		t.Fatal("expected malformed hash verification to fail")
	}
}

func TestVerifyWrongVersion(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("version-test")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	wrongVersion := strings.Replace(hash, "$v=19$", "$v=18$", 1)
	if _, err := hasher.Verify("version-test", wrongVersion); err == nil {
		t.Fatal("expected unsupported version verification to fail")
	}
}

func TestVerifyWrongAlgorithm(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("algorithm-test")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	wrongAlg := strings.Replace(hash, "$argon2id$", "$argon2i$", 1)
	if _, err := hasher.Verify("algorithm-test", wrongAlg); err == nil {
		t.Fatal("expected unsupported algorithm verification to fail")
	}
}

func TestHashTooShortPassword(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	if _, err := hasher.Hash("short"); err == nil {
		t.Fatal("expected short password hash to fail")
	}
	if _, err := hasher.Hash(""); err == nil {
		t.Fatal("expected empty password hash to fail")
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"memory below floor", func(c *Config) { c.Memory = 1024 }},
		{"zero time cost", func(c *Config) { c.Time = 0 }},
		{"zero parallelism", func(c *Config) { c.Parallelism = 0 }},
		{"short salt", func(c *Config) { c.SaltLength = 8 }},
		{"short key", func(c *Config) { c.KeyLength = 8 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := secureConfig()
			tc.mutate(&cfg)
			if _, err := NewArgon2(cfg); err == nil {
				t.Fatal("expected config validation error")
			}
		})
	}
}
