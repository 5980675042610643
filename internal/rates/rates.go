package rates

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Caskiuz/nemymarket.git/internal/logger"
	"github.com/Caskiuz/nemymarket.git/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const ratesKey = "settlement:commission_rates"

// Provider hands out the commission-rate snapshot read at computation
// time. The snapshot is never stored per order; the derived amounts are,
// so a later rate change cannot retroactively alter a past order.
type Provider interface {
	Rates(ctx context.Context) models.CommissionRates
}

type Static struct {
	rates models.CommissionRates
}

func NewStatic(r models.CommissionRates) *Static {
	return &Static{rates: r}
}

func (s *Static) Rates(_ context.Context) models.CommissionRates {
	return s.rates
}

// RedisProvider reads the rate configuration from the settings store and
// falls back to the defaults when the key is absent or redis is down.
type RedisProvider struct {
	rdb      *redis.Client
	fallback models.CommissionRates
}

func NewRedisProvider(addr string, fallback models.CommissionRates) *RedisProvider {
	return &RedisProvider{
		rdb:      redis.NewClient(&redis.Options{Addr: addr}),
		fallback: fallback,
	}
}

func (p *RedisProvider) Rates(ctx context.Context) models.CommissionRates {
	val, err := p.rdb.Get(ctx, ratesKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.Warn("failed to read commission rates, using defaults", zap.Error(err))
		}
		return p.fallback
	}
	var r models.CommissionRates
	if err = json.Unmarshal([]byte(val), &r); err != nil {
		logger.Log.Warn("malformed commission rates in settings store, using defaults", zap.Error(err))
		return p.fallback
	}
	if r.Platform < 0 || r.Business < 0 || r.Driver < 0 {
		logger.Log.Warn("negative commission rate in settings store, using defaults")
		return p.fallback
	}
	return r
}

// SetRates stores a new snapshot; used by operator tooling.
func (p *RedisProvider) SetRates(ctx context.Context, r models.CommissionRates) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return p.rdb.Set(ctx, ratesKey, b, 0).Err()
}
