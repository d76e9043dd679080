package xenonproc

import "testing"

func TestCgroupLimitsIsZero(t *testing.T) {
	cases := []struct {
		name   string
		limits CgroupLimits
		want   bool
	}{
		{"zero value", CgroupLimits{}, true},
		{"cores set", CgroupLimits{Cores: 1.5}, false},
		{"memory set", CgroupLimits{MemoryMB: 512}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.limits.isZero(); got != c.want {
				t.Fatalf("isZero() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestNoopCgroupApplierAlwaysSucceeds(t *testing.T) {
	release, err := noopCgroupApplier{}.Apply(1234, CgroupLimits{Cores: 2, MemoryMB: 1024})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if release == nil {
		t.Fatal("expected a non-nil release func")
	}
	release()
}
