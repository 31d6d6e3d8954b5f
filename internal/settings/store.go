// Package settings keeps the business's runtime configuration — availability,
// persona, pause switch and usage counters — in Redis so the dashboard can
// change it without a restart. The store is injected wherever needed; nothing
// in the engine reads process-wide state.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/bookline/internal/availability"
)

const (
	keyAvailability = "bookline:availability"
	keyPersona      = "bookline:persona"
	keyPaused       = "bookline:paused"
	keyUsagePrefix  = "bookline:usage:"
)

// Store provides persistence for business settings.
type Store struct {
	rdb *redis.Client
}

// NewStore creates a settings store over the given Redis client.
func NewStore(rdb *redis.Client) *Store {
	if rdb == nil {
		panic("settings: redis client required")
	}
	return &Store{rdb: rdb}
}

// Availability returns the configured availability, or nil when unset.
func (s *Store) Availability(ctx context.Context) (*availability.Availability, error) {
	data, err := s.rdb.Get(ctx, keyAvailability).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: get availability: %w", err)
	}
	return availability.Parse(data)
}

// SetAvailability validates and stores a raw availability document.
func (s *Store) SetAvailability(ctx context.Context, raw []byte) error {
	if _, err := availability.Parse(raw); err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, keyAvailability, raw, 0).Err(); err != nil {
		return fmt.Errorf("settings: set availability: %w", err)
	}
	return nil
}

// Persona returns the configured persona, or the default when unset.
func (s *Store) Persona(ctx context.Context) (*Persona, error) {
	data, err := s.rdb.Get(ctx, keyPersona).Bytes()
	if err == redis.Nil {
		return DefaultPersona(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: get persona: %w", err)
	}
	return ParsePersona(data)
}

// SetPersona validates and stores a raw persona document.
func (s *Store) SetPersona(ctx context.Context, raw []byte) error {
	if _, err := ParsePersona(raw); err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, keyPersona, raw, 0).Err(); err != nil {
		return fmt.Errorf("settings: set persona: %w", err)
	}
	return nil
}

// Paused reports whether inbound processing is paused. Missing key means not
// paused; a Redis failure is treated the same so an outage never silences the
// assistant.
func (s *Store) Paused(ctx context.Context) bool {
	val, err := s.rdb.Get(ctx, keyPaused).Result()
	if err != nil {
		return false
	}
	return val == "1"
}

// SetPaused flips the pause switch.
func (s *Store) SetPaused(ctx context.Context, paused bool) error {
	val := "0"
	if paused {
		val = "1"
	}
	if err := s.rdb.Set(ctx, keyPaused, val, 0).Err(); err != nil {
		return fmt.Errorf("settings: set paused: %w", err)
	}
	return nil
}

// Usage holds monthly activity counters.
type Usage struct {
	Bookings    int64 `json:"bookings"`
	Cancelled   int64 `json:"cancelled"`
	Rescheduled int64 `json:"rescheduled"`
	SMSSent     int64 `json:"sms_sent"`
}

const (
	usageFieldBookings    = "bookings"
	usageFieldCancelled   = "cancelled"
	usageFieldRescheduled = "rescheduled"
	usageFieldSent        = "sms_sent"
)

func usageKey(month time.Time) string {
	return keyUsagePrefix + month.Format("2006-01")
}

// IncrBookings bumps the current month's booking counter.
func (s *Store) IncrBookings(ctx context.Context) error {
	return s.incrUsage(ctx, usageFieldBookings)
}

// IncrCancelled bumps the current month's cancellation counter.
func (s *Store) IncrCancelled(ctx context.Context) error {
	return s.incrUsage(ctx, usageFieldCancelled)
}

// IncrRescheduled bumps the current month's reschedule counter.
func (s *Store) IncrRescheduled(ctx context.Context) error {
	return s.incrUsage(ctx, usageFieldRescheduled)
}

// IncrSMSSent bumps the current month's outbound SMS counter.
func (s *Store) IncrSMSSent(ctx context.Context) error {
	return s.incrUsage(ctx, usageFieldSent)
}

func (s *Store) incrUsage(ctx context.Context, field string) error {
	if err := s.rdb.HIncrBy(ctx, usageKey(time.Now()), field, 1).Err(); err != nil {
		return fmt.Errorf("settings: incr %s: %w", field, err)
	}
	return nil
}

// UsageFor returns the counters recorded for the given month.
func (s *Store) UsageFor(ctx context.Context, month time.Time) (*Usage, error) {
	vals, err := s.rdb.HGetAll(ctx, usageKey(month)).Result()
	if err != nil {
		return nil, fmt.Errorf("settings: get usage: %w", err)
	}

	var u Usage
	for field, dest := range map[string]*int64{
		usageFieldBookings:    &u.Bookings,
		usageFieldCancelled:   &u.Cancelled,
		usageFieldRescheduled: &u.Rescheduled,
		usageFieldSent:        &u.SMSSent,
	} {
		if raw, ok := vals[field]; ok {
			if n, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
				*dest = n
			}
		}
	}
	return &u, nil
}
