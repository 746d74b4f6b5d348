package app

import (
	"context"
	"testing"
	"time"

	"github.com/gokkuu100/konserve-cp-sub003/internal/domain"
)

func TestDeduper_NilIsDisabled(t *testing.T) {
	var d *RedisEventDeduper

	seen, err := d.AlreadyDelivered(context.Background(), domain.ProviderPaystack, "ref-1", domain.TransactionSuccessful)
	if err != nil || seen {
		t.Fatalf("expected nil deduper to report not-seen with no error, got seen=%v err=%v", seen, err)
	}
	if err := d.MarkDelivered(context.Background(), domain.ProviderPaystack, "ref-1", domain.TransactionSuccessful); err != nil {
		t.Fatalf("expected nil deduper mark to be a no-op, got %v", err)
	}
}

func TestDeduper_NoClientIsDisabled(t *testing.T) {
	d := NewRedisEventDeduper(nil, "", 0)

	seen, err := d.AlreadyDelivered(context.Background(), domain.ProviderIntaSend, "INV1", domain.TransactionFailed)
	if err != nil || seen {
		t.Fatalf("expected clientless deduper to report not-seen with no error, got seen=%v err=%v", seen, err)
	}
}

func TestDeduper_EmptyReferenceIsNeverDeduped(t *testing.T) {
	d := NewRedisEventDeduper(nil, "konserve:webhook_dedup", time.Hour)

	seen, err := d.AlreadyDelivered(context.Background(), domain.ProviderPaystack, "   ", domain.TransactionSuccessful)
	if err != nil || seen {
		t.Fatalf("expected blank reference to bypass dedup, got seen=%v err=%v", seen, err)
	}
}

func TestDeduper_KeyShape(t *testing.T) {
	d := NewRedisEventDeduper(nil, "konserve:webhook_dedup:", time.Hour)

	got := d.key(domain.ProviderPaystack, " sub-42-171 ", domain.TransactionSuccessful)
	want := "konserve:webhook_dedup:paystack:sub-42-171:successful"
	if got != want {
		t.Fatalf("expected key %q, got %q", want, got)
	}
}

func TestDeduper_DefaultsApplied(t *testing.T) {
	d := NewRedisEventDeduper(nil, "  ", -time.Minute)

	if d.prefix != "konserve:webhook_dedup" {
		t.Fatalf("expected default prefix, got %q", d.prefix)
	}
	if d.ttl != time.Hour {
		t.Fatalf("expected default TTL of one hour, got %v", d.ttl)
	}
}
