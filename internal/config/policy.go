package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CreditPolicy holds the commercial and anti-abuse knobs that may change without a redeploy.
type CreditPolicy struct {
	BundleCredits   int           `mapstructure:"bundleCredits"`
	DemoCredits     int           `mapstructure:"demoCredits"`
	PriceCents      int64         `mapstructure:"priceCents"`
	Currency        string        `mapstructure:"currency"`
	TokenTTL        time.Duration `mapstructure:"tokenTTL"`
	RateLimitWindow time.Duration `mapstructure:"rateLimitWindow"`
	RateLimitCap    int           `mapstructure:"rateLimitCap"`
}

func DefaultCreditPolicy() CreditPolicy {
	return CreditPolicy{
		BundleCredits:   6,
		DemoCredits:     999,
		PriceCents:      100,
		Currency:        "usd",
		TokenTTL:        24 * time.Hour,
		RateLimitWindow: 24 * time.Hour,
		RateLimitCap:    6,
	}
}

// InitialCredits is the credits_total written on new payment records.
func (p CreditPolicy) InitialCredits(demo bool) int {
	if demo {
		return p.DemoCredits
	}
	return p.BundleCredits
}

type PolicyHolder struct {
	current atomic.Value // holds CreditPolicy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(policy CreditPolicy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewPolicyHolder(log *zap.Logger) (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("credits")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/creditgate")
	v.AddConfigPath(".")

	return newPolicyHolder(v, log)
}

func newPolicyHolder(v *viper.Viper, log *zap.Logger) (*PolicyHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.policy")

	v.SetEnvPrefix("CREDITGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultCreditPolicy()
	v.SetDefault("credits.bundleCredits", defaults.BundleCredits)
	v.SetDefault("credits.demoCredits", defaults.DemoCredits)
	v.SetDefault("credits.priceCents", defaults.PriceCents)
	v.SetDefault("credits.currency", defaults.Currency)
	v.SetDefault("credits.tokenTTL", defaults.TokenTTL)
	v.SetDefault("credits.rateLimitWindow", defaults.RateLimitWindow)
	v.SetDefault("credits.rateLimitCap", defaults.RateLimitCap)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	policy := readCreditPolicy(v)
	if err := validateCreditPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(policy)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := readCreditPolicy(v)
		if err := validateCreditPolicy(updated); err != nil {
			log.Warn("invalid credit policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("credit policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// readCreditPolicy reads key by key so that keys missing from the file keep
// their defaults and CREDITGATE_CREDITS_* variables override both.
// UnmarshalKey on the "credits" map would do neither.
func readCreditPolicy(v *viper.Viper) CreditPolicy {
	return CreditPolicy{
		BundleCredits:   v.GetInt("credits.bundleCredits"),
		DemoCredits:     v.GetInt("credits.demoCredits"),
		PriceCents:      v.GetInt64("credits.priceCents"),
		Currency:        strings.ToLower(strings.TrimSpace(v.GetString("credits.currency"))),
		TokenTTL:        v.GetDuration("credits.tokenTTL"),
		RateLimitWindow: v.GetDuration("credits.rateLimitWindow"),
		RateLimitCap:    v.GetInt("credits.rateLimitCap"),
	}
}

func (h *PolicyHolder) Get() CreditPolicy {
	return h.current.Load().(CreditPolicy)
}

func validateCreditPolicy(p CreditPolicy) error {
	if p.BundleCredits <= 0 {
		return errors.New("credits.bundleCredits must be positive")
	}
	if p.DemoCredits <= 0 {
		return errors.New("credits.demoCredits must be positive")
	}
	if p.PriceCents <= 0 {
		return errors.New("credits.priceCents must be positive")
	}
	if strings.TrimSpace(p.Currency) == "" {
		return errors.New("credits.currency cannot be empty")
	}
	if p.TokenTTL <= 0 {
		return errors.New("credits.tokenTTL must be positive")
	}
	if p.RateLimitWindow <= 0 {
		return errors.New("credits.rateLimitWindow must be positive")
	}
	if p.RateLimitCap <= 0 {
		return errors.New("credits.rateLimitCap must be positive")
	}
	return nil
}
