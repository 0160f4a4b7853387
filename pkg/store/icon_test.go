package store

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("icon packing", func() {
	It("round-trips id/image/directional through pack/unpack", func() {
		packed := packIcon("5", "symbols/car.png", true)
		id, image, directional, ok := unpackIcon(packed)
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal("5"))
		Expect(image).To(Equal("symbols/car.png"))
		Expect(directional).To(BeTrue())
	})

	It("rewrites a directional image under compass/ for a given course", func() {
		rewritten := rewriteForCourse("symbols/car.png", 90)
		Expect(rewritten).To(Equal("symbols/compass/car-east.png"))
	})
})

var _ = Describe("GetIconID", func() {
	var (
		s   *Store
		ctx context.Context
	)

	BeforeEach(func() {
		s = New(newMemCache(), nil, time.Minute, nil)
		ctx = context.Background()
	})

	It("returns a cached non-directional icon unchanged", func() {
		key := iconCacheKey("/", ">")
		s.cache.Put(ctx, "icon", key, packIcon("3", "symbols/car.png", false), time.Minute)

		id, image, ok := s.GetIconID(ctx, "/", ">", 45)
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal("3"))
		Expect(image).To(Equal("symbols/car.png"))
	})

	It("rewrites a cached directional icon for the given course", func() {
		key := iconCacheKey("/", ">")
		s.cache.Put(ctx, "icon", key, packIcon("3", "symbols/car.png", true), time.Minute)

		_, image, ok := s.GetIconID(ctx, "/", ">", 180)
		Expect(ok).To(BeTrue())
		Expect(image).To(Equal("symbols/compass/car-south.png"))
	})
})
