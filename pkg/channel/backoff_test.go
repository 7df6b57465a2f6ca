package channel

import (
	"testing"
	"time"
)

func TestBackoffWithoutJitter(t *testing.T) {
	b := Backoff{Min: time.Second, Max: 5 * time.Second, Factor: 2}
	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		5 * time.Second,
		5 * time.Second,
	}
	for attempt, w := range want {
		if got := b.Duration(attempt); got != w {
			t.Errorf("Duration(%d) = %s, want %s", attempt, got, w)
		}
	}
	if got := b.Duration(10000); got != 5*time.Second {
		t.Errorf("Duration(10000) = %s, want cap", got)
	}
}

func TestBackoffJitterStaysBounded(t *testing.T) {
	tests := []struct {
		name string
		rand float64
		want time.Duration
	}{
		// floor(0.05*10)=0 is even: deviation is subtracted
		{name: "subtract", rand: 0.05, want: time.Second - time.Duration(0.05*0.5*float64(time.Second))},
		// floor(0.15*10)=1 is odd: deviation is added
		{name: "add", rand: 0.15, want: time.Second + time.Duration(0.15*0.5*float64(time.Second))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := DefaultBackoff()
			b.rand = func() float64 { return tt.rand }
			if got := b.Duration(0); got != tt.want {
				t.Errorf("Duration(0) = %s, want %s", got, tt.want)
			}
		})
	}

	b := DefaultBackoff()
	for attempt := 0; attempt < 20; attempt++ {
		got := b.Duration(attempt)
		if got <= 0 || got > DefaultReconnectDelayMax {
			t.Fatalf("Duration(%d) = %s out of bounds", attempt, got)
		}
	}
}

func TestBackoffDefaultsForZeroValue(t *testing.T) {
	var b Backoff
	if got := b.Duration(0); got != DefaultReconnectDelay {
		t.Errorf("Duration(0) = %s, want %s", got, DefaultReconnectDelay)
	}
	if got := b.Duration(-1); got != DefaultReconnectDelay {
		t.Errorf("Duration(-1) = %s, want %s", got, DefaultReconnectDelay)
	}
}

func TestBackoffLongOutageStaysBounded(t *testing.T) {
	attempts := []int{3, 50, 993, 994, 1023, 1024, 1100, 1 << 20}
	for _, r := range []float64{0, 0.05, 0.15, 0.55, 0.99} {
		b := DefaultBackoff()
		b.rand = func() float64 { return r }
		for _, attempt := range attempts {
			got := b.Duration(attempt)
			if got <= 0 || got > DefaultReconnectDelayMax {
				t.Fatalf("rand=%v Duration(%d) = %s, outside (0, %s]", r, attempt, got, DefaultReconnectDelayMax)
			}
			if attempt >= 50 && got != DefaultReconnectDelayMax {
				t.Errorf("rand=%v Duration(%d) = %s, want cap", r, attempt, got)
			}
		}
	}
}

func TestBackoffExtremeSettingsStayPositive(t *testing.T) {
	b := Backoff{Min: time.Nanosecond, Max: time.Hour, Factor: 1, Jitter: 5}
	b.rand = func() float64 { return 0.99 }
	for _, attempt := range []int{0, 1, 1 << 30} {
		if got := b.Duration(attempt); got <= 0 || got > time.Hour {
			t.Fatalf("Duration(%d) = %s, outside (0, 1h]", attempt, got)
		}
	}
}
