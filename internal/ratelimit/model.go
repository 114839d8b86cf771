package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"
)

type Reason string

const (
	ReasonFingerprintLimit Reason = "fingerprint_limit"
	ReasonIPLimit          Reason = "ip_limit"
)

const (
	fingerprintPrefix = "fp_"
	ipPrefix          = "ip_"

	// UnknownIP keys requests that arrive without a resolvable client address.
	UnknownIP = "unknown"
)

var (
	ErrMissingFingerprint = errors.New("missing_fingerprint")
	ErrInvalidPolicy      = errors.New("invalid_rate_limit_policy")
)

// UsageRecord counts uses per identity key inside the current window.
type UsageRecord struct {
	Key         string     `json:"key" gorm:"primaryKey;size:191"`
	CreditsUsed int        `json:"credits_used" gorm:"not null;default:0"`
	LastReset   time.Time  `json:"last_reset" gorm:"not null"`
	LastUsed    *time.Time `json:"last_used"`
}

func (UsageRecord) TableName() string { return "usage_records" }

func FingerprintKey(fingerprint string) string {
	return fingerprintPrefix + strings.TrimSpace(fingerprint)
}

func IPKey(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = UnknownIP
	}
	return ipPrefix + ip
}

// EffectiveUsage returns the record as seen at now. A missing record, or one
// whose window started more than window ago, reads as zero usage starting now.
func EffectiveUsage(record *UsageRecord, key string, now time.Time, window time.Duration) UsageRecord {
	if record == nil {
		return UsageRecord{Key: key, LastReset: now}
	}
	out := *record
	if out.LastReset.IsZero() {
		out.LastReset = now
	}
	if now.Sub(out.LastReset) > window {
		out.CreditsUsed = 0
		out.LastReset = now
	}
	return out
}

// Decision is the outcome of one limiter evaluation. Remaining is reported
// against the more consumed of the two axes.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Reason    Reason `json:"reason,omitempty"`
	Remaining int    `json:"remaining"`
}

// Decide denies the fingerprint axis before the ip axis.
func Decide(fpUsed, ipUsed, limit int) Decision {
	if fpUsed >= limit {
		return Decision{Reason: ReasonFingerprintLimit}
	}
	if ipUsed >= limit {
		return Decision{Reason: ReasonIPLimit}
	}
	return Decision{Allowed: true, Remaining: remaining(fpUsed, ipUsed, limit)}
}

func remaining(fpUsed, ipUsed, limit int) int {
	used := fpUsed
	if ipUsed > used {
		used = ipUsed
	}
	if limit-used < 0 {
		return 0
	}
	return limit - used
}

// Policy is the window and cap applied to both axes.
type Policy struct {
	Window time.Duration
	Cap    int
}

func (p Policy) validate() error {
	if p.Window <= 0 || p.Cap <= 0 {
		return ErrInvalidPolicy
	}
	return nil
}

// Backend evaluates and records uses for a fingerprint and ip key pair.
type Backend interface {
	Name() string
	// Check evaluates without writing.
	Check(ctx context.Context, fpKey, ipKey string, now time.Time, policy Policy) (Decision, error)
	// Use evaluates and, when allowed, increments both keys. Remaining is post-increment.
	Use(ctx context.Context, fpKey, ipKey string, now time.Time, policy Policy) (Decision, error)
}

type Limiter interface {
	CheckCredits(ctx context.Context, fingerprint, ip string) (Decision, error)
	UseCredit(ctx context.Context, fingerprint, ip string) (Decision, error)
}
