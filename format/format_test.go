package format

import (
	"testing"
	"time"
)

func TestHumanNumber(t *testing.T) {
	cases := []struct {
		in   uint64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.00K"},
		{12_345, "12.3K"},
		{1_234_567, "1.23M"},
		{123_456_789, "123M"},
		{2_500_000_000, "2.50B"},
	}

	for _, tt := range cases {
		if got := HumanNumber(tt.in); got != tt.want {
			t.Errorf("HumanNumber(%d) = %q, erwartet %q", tt.in, got, tt.want)
		}
	}
}

func TestHumanBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1500, "1.5 KB"},
		{2_500_000, "2.5 MB"},
		{3_200_000_000, "3.2 GB"},
	}

	for _, tt := range cases {
		if got := HumanBytes(tt.in); got != tt.want {
			t.Errorf("HumanBytes(%d) = %q, erwartet %q", tt.in, got, tt.want)
		}
	}
}

func TestHumanTime(t *testing.T) {
	if got := HumanTime(time.Time{}, "Never"); got != "Never" {
		t.Errorf("erwartet Never, erhalten %q", got)
	}
	if got := HumanTime(time.Now().Add(-3*time.Hour), "Never"); got != "3 hours ago" {
		t.Errorf("erwartet \"3 hours ago\", erhalten %q", got)
	}
	if got := HumanTime(time.Now().Add(90*time.Second), "Never"); got != "About a minute from now" {
		t.Errorf("erwartet \"About a minute from now\", erhalten %q", got)
	}
}

func TestHumanDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{500 * time.Millisecond, "Less than a second"},
		{time.Second, "1 second"},
		{45 * time.Second, "45 seconds"},
		{70 * time.Second, "About a minute"},
		{59 * time.Minute, "59 minutes"},
		{time.Hour, "About an hour"},
		{30 * time.Hour, "30 hours"},
		{5 * 24 * time.Hour, "5 days"},
		{21 * 24 * time.Hour, "3 weeks"},
		{90 * 24 * time.Hour, "3 months"},
		{3 * 365 * 24 * time.Hour, "3 years"},
	}

	for _, tt := range cases {
		if got := HumanDuration(tt.in); got != tt.want {
			t.Errorf("HumanDuration(%v) = %q, erwartet %q", tt.in, got, tt.want)
		}
	}
}
