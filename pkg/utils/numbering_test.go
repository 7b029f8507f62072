package utils

import (
	"testing"
	"time"
)

func TestFormatDocumentNumber(t *testing.T) {
	day := time.Date(2024, time.March, 7, 23, 30, 0, 0, time.UTC)

	cases := []struct {
		prefix string
		seq    int
		want   string
	}{
		{PrefixPayment, 1, "PAY2403070001"},
		{PrefixRefund, 42, "REF2403070042"},
		{PrefixPayment, 12345, "PAY24030712345"},
	}
	for _, tc := range cases {
		if got := FormatDocumentNumber(tc.prefix, day, tc.seq); got != tc.want {
			t.Errorf("FormatDocumentNumber(%s, %d) = %s, want %s", tc.prefix, tc.seq, got, tc.want)
		}
	}
}

func TestBusinessDateUsesLocalDay(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	utc := time.Date(2024, time.March, 7, 20, 0, 0, 0, time.UTC)
	if got := BusinessDate(utc.In(loc)); got != "2024-03-08" {
		t.Fatalf("BusinessDate = %s", got)
	}
}
