package drift_test

import (
	"math"
	"math/big"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/driftsim/internal/drift"
	"github.com/san-kum/driftsim/internal/vecmath"
)

const eps = 0x1p-52

// kahan is the branch-free variant, kept here as a baseline.
type kahan struct{ sum, c float64 }

func (k *kahan) add(v float64) {
	y := v - k.c
	t := k.sum + y
	k.c = (t - k.sum) - y
	k.sum = t
}

// exactRepeated returns initial + n*addend rounded once to float64.
func exactRepeated(initial, addend float64, n int) float64 {
	r := new(big.Float).SetPrec(256).SetFloat64(addend)
	r.Mul(r, new(big.Float).SetPrec(256).SetInt64(int64(n)))
	r.Add(r, new(big.Float).SetPrec(256).SetFloat64(initial))
	f, _ := r.Float64()
	return f
}

func withinBound(got, want float64) bool {
	return math.Abs(got-want) <= 4*eps*math.Abs(want)
}

var _ = Describe("Accumulator", func() {
	var acc *drift.Accumulator

	BeforeEach(func() {
		acc = drift.New()
	})

	It("starts empty", func() {
		Expect(acc.Sum().Equal(vecmath.Zero)).To(BeTrue())
		Expect(acc.Compensation().Equal(vecmath.Zero)).To(BeTrue())
		Expect(acc.Resolve().Equal(vecmath.Zero)).To(BeTrue())
	})

	It("adds vectors", func() {
		acc.Add(vecmath.New(1, 2, 3))
		acc.Add(vecmath.New(4, 5, 6))
		Expect(acc.Resolve()).To(Equal(vecmath.New(5, 7, 9)))
	})

	It("scales before adding", func() {
		acc.AddScaled(vecmath.New(10, 20, 30), 0.5)
		Expect(acc.Resolve()).To(Equal(vecmath.New(5, 10, 15)))
	})

	It("starts from an initial value", func() {
		acc = drift.WithInitial(vecmath.New(1, 1, 1))
		acc.Add(vecmath.New(1, 2, 3))
		Expect(acc.Resolve()).To(Equal(vecmath.New(2, 3, 4)))
		Expect(acc.Compensation()).To(Equal(vecmath.Zero))
	})

	It("survives catastrophic cancellation", func() {
		acc.Add(vecmath.New(1e16, 1e16, 1e16))
		acc.Add(vecmath.New(1, 1, 1))
		acc.Add(vecmath.New(-1e16, -1e16, -1e16))
		Expect(acc.Resolve()).To(Equal(vecmath.New(1, 1, 1)))
	})

	It("does not drift over balanced long-horizon operations", func() {
		for i := 0; i < 100_000; i++ {
			large := 1e15 + float64(i)*1e-5
			acc.Add(vecmath.New(large, large, large))
			acc.Add(vecmath.New(-large, -large, -large))
		}
		r := acc.Resolve()
		Expect(math.Abs(r.X)).To(BeNumerically("<", 1e-10))
		Expect(math.Abs(r.Y)).To(BeNumerically("<", 1e-10))
		Expect(math.Abs(r.Z)).To(BeNumerically("<", 1e-10))
	})

	It("tracks 100k frames at 60 Hz within 1e-9 and beats naive summation", func() {
		v := vecmath.New(1, 2, 3)
		naive := vecmath.Zero
		for i := 0; i < 100_000; i++ {
			acc.AddScaled(v, 1.0/60.0)
			naive = naive.Add(v.Scale(1.0 / 60.0))
		}
		want := vecmath.New(100000.0/60.0, 200000.0/60.0, 300000.0/60.0)
		got := acc.Resolve()

		Expect(got.X).To(BeNumerically("~", want.X, 1e-9))
		Expect(got.Y).To(BeNumerically("~", want.Y, 1e-9))
		Expect(got.Z).To(BeNumerically("~", want.Z, 1e-9))

		compErr := got.Sub(want).Abs().MaxComponent()
		naiveErr := naive.Sub(want).Abs().MaxComponent()
		Expect(compErr).To(BeNumerically("<", naiveErr))
	})

	DescribeTable("error stays within a constant multiple of epsilon",
		func(n int) {
			dir := vecmath.New(1, 2, 3)
			scale := 1.0 / 60.0
			step := dir.Scale(scale)
			for i := 0; i < n; i++ {
				acc.AddScaled(dir, scale)
			}
			got := acc.Resolve()
			Expect(withinBound(got.X, exactRepeated(0, step.X, n))).To(BeTrue(), "x=%v", got.X)
			Expect(withinBound(got.Y, exactRepeated(0, step.Y, n))).To(BeTrue(), "y=%v", got.Y)
			Expect(withinBound(got.Z, exactRepeated(0, step.Z, n))).To(BeTrue(), "z=%v", got.Z)
		},
		Entry("1e3 steps", 1_000),
		Entry("1e4 steps", 10_000),
		Entry("1e5 steps", 100_000),
		Entry("1e6 steps", 1_000_000),
		Entry("1e7 steps", 10_000_000, Label("slow")),
		Entry("1e8 steps", 100_000_000, Label("slow")),
	)

	It("leaves naive summation outside that bound at 1e6 steps", func() {
		step := 1.0 / 60.0
		naive := 0.0
		for i := 0; i < 1_000_000; i++ {
			naive += step
		}
		Expect(withinBound(naive, exactRepeated(0, step, 1_000_000))).To(BeFalse())
	})

	It("resolves idempotently", func() {
		acc.AddScaled(vecmath.New(0.1, 0.2, 0.3), 1.0/3.0)
		first := acc.Resolve()
		second := acc.Resolve()
		Expect(first.Equal(second)).To(BeTrue())
	})

	It("gives the same final answer when resolved mid-stream", func() {
		other := drift.New()
		v := vecmath.New(0.1, -0.7, 1e-3)
		for i := 0; i < 10_000; i++ {
			acc.AddScaled(v, 1.0/60.0)
			other.AddScaled(v, 1.0/60.0)
			_ = other.Resolve()
		}
		Expect(acc.Resolve().Equal(other.Resolve())).To(BeTrue())
		Expect(acc.Sum().Equal(other.Sum())).To(BeTrue())
		Expect(acc.Compensation().Equal(other.Compensation())).To(BeTrue())
	})

	It("bounds order sensitivity", func() {
		a := vecmath.New(1e16, 0.1, -3.3)
		b := vecmath.New(1, 0.2, 1e-17)
		ab, ba := drift.New(), drift.New()
		ab.Add(a)
		ab.Add(b)
		ba.Add(b)
		ba.Add(a)
		r1, r2 := ab.Resolve(), ba.Resolve()
		Expect(withinBound(r1.X, r2.X)).To(BeTrue())
		Expect(withinBound(r1.Y, r2.Y)).To(BeTrue())
		Expect(withinBound(r1.Z, r2.Z)).To(BeTrue())
	})

	It("resets sum and compensation together", func() {
		acc.Add(vecmath.New(1e16, 1e16, 1e16))
		acc.Add(vecmath.New(1, 1, 1))
		Expect(acc.Compensation().IsZero()).To(BeFalse())

		acc.Reset()
		Expect(acc.Sum().Equal(vecmath.Zero)).To(BeTrue())
		Expect(acc.Compensation().Equal(vecmath.Zero)).To(BeTrue())
	})

	It("propagates NaN and infinity without failing", func() {
		acc.Add(vecmath.New(math.NaN(), math.Inf(1), 1))
		r := acc.Resolve()
		Expect(math.IsNaN(r.X)).To(BeTrue())
		Expect(math.IsNaN(r.Y) || math.IsInf(r.Y, 1)).To(BeTrue())
		Expect(r.Z).To(Equal(1.0))
	})

	It("clones independently", func() {
		acc.Add(vecmath.New(1, 2, 3))
		c := acc.Clone()
		c.Add(vecmath.New(1, 1, 1))
		Expect(acc.Resolve()).To(Equal(vecmath.New(1, 2, 3)))
		Expect(c.Resolve()).To(Equal(vecmath.New(2, 3, 4)))
	})
})

var _ = Describe("magnitude branch", func() {
	It("recovers the small term that branch-free Kahan drops", func() {
		var k kahan
		var n drift.Neumaier
		for _, v := range []float64{1e16, 1, -1e16} {
			k.add(v)
			n.Add(v)
		}
		Expect(n.Total()).To(Equal(1.0))
		Expect(k.sum - k.c).NotTo(Equal(1.0))
	})

	It("keeps accumulating when the addend dominates the sum", func() {
		var k kahan
		var n drift.Neumaier
		for i := 0; i < 1000; i++ {
			for _, v := range []float64{1, 1e100, 1, -1e100} {
				k.add(v)
				n.Add(v)
			}
		}
		Expect(n.Total()).To(Equal(2000.0))
		Expect(math.Abs(k.sum - k.c - 2000.0)).To(BeNumerically(">", 1))
	})
})
