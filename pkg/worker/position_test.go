package worker

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("haversineMiles", func() {
	It("returns ~0 for the same point", func() {
		Expect(haversineMiles(45.0, -122.0, 45.0, -122.0)).To(BeNumerically("~", 0, 0.001))
	})

	It("returns a plausible distance for a known pair", func() {
		// Portland, OR to Seattle, WA is roughly 145 statute miles.
		d := haversineMiles(45.5152, -122.6784, 47.6062, -122.3321)
		Expect(d).To(BeNumerically("~", 145, 10))
	})
})

var _ = Describe("md5Hex", func() {
	It("is deterministic", func() {
		Expect(md5Hex("hello")).To(Equal(md5Hex("hello")))
	})

	It("differs for different input", func() {
		Expect(md5Hex("hello")).NotTo(Equal(md5Hex("world")))
	})
})
