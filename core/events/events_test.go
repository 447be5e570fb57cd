package events

import (
	"math/big"
	"testing"
)

type testEvent string

func (e testEvent) EventType() string { return string(e) }

type countingEmitter int

func (c *countingEmitter) Emit(Event) { *c++ }

func TestFanoutForwardsInOrder(t *testing.T) {
	var first, second countingEmitter
	fanout := Fanout{&first, nil, &second}
	fanout.Emit(testEvent("x"))
	fanout.Emit(testEvent("y"))
	if first != 2 || second != 2 {
		t.Fatalf("expected both sinks to see 2 events, got %d and %d", first, second)
	}
}

func TestHelpers(t *testing.T) {
	var addr [20]byte
	addr[0] = 0xAB
	if got := AddressHex(addr); got != "ab00000000000000000000000000000000000000" {
		t.Fatalf("unexpected address hex %q", got)
	}
	if got := FormatAmount(nil); got != "0" {
		t.Fatalf("nil amount should render as zero, got %q", got)
	}
	if got := FormatAmount(big.NewInt(-42)); got != "-42" {
		t.Fatalf("unexpected amount %q", got)
	}
	if got := FormatInt(-7); got != "-7" {
		t.Fatalf("unexpected int %q", got)
	}
	if got := FormatUint(7); got != "7" {
		t.Fatalf("unexpected uint %q", got)
	}
	if got := NormalizeToken(" usd "); got != "USD" {
		t.Fatalf("unexpected token %q", got)
	}
	if got := NormalizeToken("   "); got != "" {
		t.Fatalf("blank token should normalize empty, got %q", got)
	}
}
