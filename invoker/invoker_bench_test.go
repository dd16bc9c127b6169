package invoker

import (
	"testing"
)

func BenchmarkInvokeMethodLow(b *testing.B) {
	fx := newFixture(b)
	c := &Counter{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = fx.factory.InvokeMethod(c, "Add", 1)
	}
	b.ReportAllocs()
}

func BenchmarkInvokeStaticHigh(b *testing.B) {
	fx := newFixture(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = fx.factory.InvokeStaticMethod(fx.counter, "Sum", 1, 2, 3, 4, 5, 6)
	}
	b.ReportAllocs()
}

func BenchmarkCreateInstance(b *testing.B) {
	fx := newFixture(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = fx.factory.CreateInstance(fx.counter, i, "bench")
	}
	b.ReportAllocs()
}
