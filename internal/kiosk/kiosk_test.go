package kiosk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/siae-sistema/cardlink/internal/capture"
	"github.com/siae-sistema/cardlink/internal/models"
	"github.com/siae-sistema/cardlink/internal/storage"
	"github.com/siae-sistema/cardlink/internal/wedge"
)

type fakeRegistrar struct {
	mu    sync.Mutex
	seen  map[string]bool
	known map[string]bool
	err   error
	calls []string
}

func (r *fakeRegistrar) RegisterAccess(ctx context.Context, uid string) (models.Access, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, uid)
	if r.err != nil {
		return models.Access{}, r.err
	}
	if !r.known[uid] {
		return models.Access{}, fmt.Errorf("%w: %s", storage.ErrCardNotFound, uid)
	}
	if r.seen[uid] {
		return models.Access{CardUID: uid}, storage.ErrDuplicateAccess
	}
	r.seen[uid] = true
	return models.Access{CardUID: uid, RecordedAt: time.Now()}, nil
}

type harness struct {
	kiosk   *Kiosk
	field   *wedge.Field
	reg     *fakeRegistrar
	metrics *Metrics
	cancel  context.CancelFunc

	mu      sync.Mutex
	results []Result
}

func startKiosk(known ...string) *harness {
	h := &harness{
		field: wedge.NewField(),
		reg:   &fakeRegistrar{seen: map[string]bool{}, known: map[string]bool{}},
	}
	for _, uid := range known {
		h.reg.known[uid] = true
	}
	h.metrics = NewMetrics(prometheus.NewRegistry())
	h.kiosk = New(Config{
		UIDLength:     8,
		Debounce:      100 * time.Millisecond,
		FocusInterval: 100 * time.Millisecond,
	}, h.field, h.reg, func(r Result) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.results = append(h.results, r)
	}, h.metrics)
	h.field.OnChange(h.kiosk.Input)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go h.kiosk.Run(ctx)
	return h
}

func (h *harness) stop() {
	h.cancel()
	<-h.kiosk.done
}

func (h *harness) tap(value string) {
	for _, r := range value {
		h.field.Type(r)
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(150 * time.Millisecond)
	synctest.Wait()
}

func (h *harness) statuses() []Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Status, len(h.results))
	for i, r := range h.results {
		out[i] = r.Status
	}
	return out
}

func TestKioskRegistersEachRead(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := startKiosk("29115803", "AABBCCDD")
		defer h.stop()

		h.tap("29115803")
		h.tap("aabbccdd")
		h.tap("29115803")
		h.tap("DEADBEEF")

		expected := []Status{StatusRegistered, StatusRegistered, StatusDuplicate, StatusUnknown}
		got := h.statuses()
		if len(got) != len(expected) {
			t.Fatalf("Expected %v, got %v", expected, got)
		}
		for i := range expected {
			if got[i] != expected[i] {
				t.Errorf("Read %d: expected %s, got %s", i, expected[i], got[i])
			}
		}
		if h.field.Value() != "" {
			t.Errorf("Expected field cleared after reads, got %q", h.field.Value())
		}
		if n := testutil.ToFloat64(h.metrics.reads.WithLabelValues("registered")); n != 2 {
			t.Errorf("Expected 2 registered reads counted, got %v", n)
		}
	})
}

func TestKioskTruncatesLongBursts(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := startKiosk("29115803")
		defer h.stop()

		h.tap("29115803AB")

		h.reg.mu.Lock()
		calls := append([]string(nil), h.reg.calls...)
		h.reg.mu.Unlock()
		if len(calls) != 1 || calls[0] != "29115803" {
			t.Errorf("Expected one registration of 29115803, got %v", calls)
		}
	})
}

func TestKioskWaitsForShortBurst(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := startKiosk("29115803")
		defer h.stop()

		h.tap("2911")
		if got := h.statuses(); len(got) != 0 {
			t.Fatalf("Expected no result for a short burst, got %v", got)
		}
		if h.field.Value() != "2911" {
			t.Errorf("Expected partial value kept, got %q", h.field.Value())
		}

		h.tap("5803")
		got := h.statuses()
		if len(got) != 1 || got[0] != StatusRegistered {
			t.Errorf("Expected the completed read to register, got %v", got)
		}
	})
}

func TestKioskRejectsMalformedRead(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := startKiosk("29115803")
		defer h.stop()

		h.tap("2911580Z")

		got := h.statuses()
		if len(got) != 1 || got[0] != StatusMalformed {
			t.Fatalf("Expected a malformed result, got %v", got)
		}
		h.mu.Lock()
		err := h.results[0].Err
		h.mu.Unlock()
		if !errors.Is(err, capture.ErrMalformed) {
			t.Errorf("Expected ErrMalformed, got %v", err)
		}
		if h.field.Value() != "" {
			t.Errorf("Expected field cleared, got %q", h.field.Value())
		}
	})
}

func TestKioskRegistrarFailure(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := startKiosk("29115803")
		defer h.stop()
		h.reg.mu.Lock()
		h.reg.err = errors.New("backend down")
		h.reg.mu.Unlock()

		h.tap("29115803")

		got := h.statuses()
		if len(got) != 1 || got[0] != StatusFailed {
			t.Errorf("Expected a failed result, got %v", got)
		}
	})
}

func TestKioskKeepsFocus(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := startKiosk()
		defer h.stop()
		synctest.Wait()

		if !h.field.Focused() {
			t.Fatal("Expected kiosk to focus the field on start")
		}
		h.field.Blur()
		time.Sleep(150 * time.Millisecond)
		synctest.Wait()
		if !h.field.Focused() {
			t.Error("Expected focus to be reclaimed")
		}
	})
}
