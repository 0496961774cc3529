package dataset

import "testing"

func TestItemKeyAndValue(t *testing.T) {
	if got := ItemKey(6); got != "item-6" {
		t.Fatalf("ItemKey(6) = %q", got)
	}
	if got := ItemValue(10); got != "value-10" {
		t.Fatalf("ItemValue(10) = %q", got)
	}
}

func TestFillOrder(t *testing.T) {
	var keys []string
	Fill(3, func(k, v string) {
		keys = append(keys, k+"="+v)
	})
	want := []string{"item-0=value-0", "item-1=value-1", "item-2=value-2"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(keys))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("call %d: got %q want %q", i, keys[i], want[i])
		}
	}
}
