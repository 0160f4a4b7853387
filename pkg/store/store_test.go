package store

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aprsworld/ingestd/pkg/cache"
)

// memCache is an in-memory Cache test double.
type memCache struct {
	data map[string]string
}

func newMemCache() *memCache { return &memCache{data: make(map[string]string)} }

func (c *memCache) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	v, ok := c.data[namespace+":"+key]
	return v, ok, nil
}

func (c *memCache) Put(ctx context.Context, namespace, key, value string, ttl time.Duration) error {
	c.data[namespace+":"+key] = value
	return nil
}

func (c *memCache) Close() error { return nil }

var _ cache.Cache = (*memCache)(nil)

var _ = Describe("resolve", func() {
	var (
		s   *Store
		mc  *memCache
		ctx context.Context
	)

	BeforeEach(func() {
		mc = newMemCache()
		s = New(mc, nil, time.Minute, nil)
		ctx = context.Background()
	})

	It("returns a cache hit without calling the db", func() {
		mc.data["callsign:N0CALL"] = "7"
		dbCalled := false
		lookup := func(ctx context.Context, key string) (bool, string, error) {
			dbCalled = true
			return false, "", nil
		}
		insert := func(ctx context.Context, key string) (bool, string, error) {
			dbCalled = true
			return false, "", nil
		}

		id, ok := s.resolve(ctx, "callsign", "N0CALL", lookup, insert)
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal("7"))
		Expect(dbCalled).To(BeFalse())
	})

	It("writes through to the cache on a db SELECT hit", func() {
		lookup := func(ctx context.Context, key string) (bool, string, error) {
			return true, "9", nil
		}
		insert := func(ctx context.Context, key string) (bool, string, error) {
			return false, "", errors.New("should not be called")
		}

		id, ok := s.resolve(ctx, "callsign", "N0CALL", lookup, insert)
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal("9"))
		Expect(mc.data["callsign:N0CALL"]).To(Equal("9"))
	})

	It("inserts and caches on a full miss", func() {
		lookup := func(ctx context.Context, key string) (bool, string, error) {
			return false, "", nil
		}
		insert := func(ctx context.Context, key string) (bool, string, error) {
			return true, "11", nil
		}

		id, ok := s.resolve(ctx, "callsign", "N0CALL", lookup, insert)
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal("11"))
		Expect(mc.data["callsign:N0CALL"]).To(Equal("11"))
	})

	It("tolerates losing the insert race by re-selecting", func() {
		// INSERT IGNORE reports not-inserted (another worker won), so the
		// resolver re-SELECTs and picks up the winner's row.
		lookupCalls := 0
		lookup := func(ctx context.Context, key string) (bool, string, error) {
			lookupCalls++
			if lookupCalls == 1 {
				return false, "", nil
			}
			return true, "13", nil
		}
		insert := func(ctx context.Context, key string) (bool, string, error) {
			return false, "", nil
		}

		id, ok := s.resolve(ctx, "callsign", "N0CALL", lookup, insert)
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal("13"))
		Expect(lookupCalls).To(Equal(2))
	})

	It("counts a try on every call", func() {
		lookup := func(ctx context.Context, key string) (bool, string, error) { return true, "1", nil }
		insert := func(ctx context.Context, key string) (bool, string, error) { return false, "", nil }

		s.resolve(ctx, "callsign", "N0CALL", lookup, insert)
		snap := s.StatsSnapshot()
		Expect(snap["callsign"].Tries).To(Equal(uint64(1)))
	})
})

var _ = Describe("CheckDuplicate", func() {
	var (
		s   *Store
		ctx context.Context
	)

	BeforeEach(func() {
		s = New(newMemCache(), nil, time.Minute, nil)
		ctx = context.Background()
	})

	It("is not a duplicate the first time a source+body pair is seen", func() {
		Expect(s.CheckDuplicate(ctx, "N0CALL", "body", time.Now())).To(BeFalse())
	})

	It("is a duplicate within the 30s window", func() {
		now := time.Now()
		Expect(s.CheckDuplicate(ctx, "N0CALL", "body", now)).To(BeFalse())
		Expect(s.CheckDuplicate(ctx, "N0CALL", "body", now.Add(10*time.Second))).To(BeTrue())
	})

	It("is not a duplicate once the 30s window has elapsed", func() {
		now := time.Now()
		Expect(s.CheckDuplicate(ctx, "N0CALL", "body", now)).To(BeFalse())
		Expect(s.CheckDuplicate(ctx, "N0CALL", "body", now.Add(31*time.Second))).To(BeFalse())
	})

	It("is case-insensitive on the source callsign", func() {
		now := time.Now()
		Expect(s.CheckDuplicate(ctx, "n0call", "body", now)).To(BeFalse())
		Expect(s.CheckDuplicate(ctx, "N0CALL", "body", now.Add(time.Second))).To(BeTrue())
	})
})

var _ = Describe("positions cache layout", func() {
	var (
		s   *Store
		ctx context.Context
	)

	BeforeEach(func() {
		s = New(newMemCache(), nil, time.Minute, nil)
		ctx = context.Background()
	})

	It("prepends new fixes and keeps old ones within the age/count bounds", func() {
		s.AppendPosition(ctx, "42", 34.1, -118.2, 1700000000)
		s.AppendPosition(ctx, "42", 34.2, -118.3, 1700000010)

		packed, found, _ := s.cache.Get(ctx, cache.NamespacePositions, "42")
		Expect(found).To(BeTrue())
		lines := splitRecords(packed)
		Expect(lines).To(HaveLen(2))
		Expect(lines[0]).To(ContainSubstring("34.200000"))
	})

	It("drops entries older than 86400s", func() {
		s.AppendPosition(ctx, "42", 34.1, -118.2, 1700000000)
		s.AppendPosition(ctx, "42", 34.2, -118.3, 1700000000+90000)

		packed, _, _ := s.cache.Get(ctx, cache.NamespacePositions, "42")
		Expect(splitRecords(packed)).To(HaveLen(1))
	})
})

var _ = Describe("lastpositions cache layout", func() {
	var (
		s   *Store
		ctx context.Context
	)

	BeforeEach(func() {
		s = New(newMemCache(), nil, time.Minute, nil)
		ctx = context.Background()
	})

	It("replaces the entry for the same source in place", func() {
		s.AppendLastPosition(ctx, "DM04", "N0CALL", 1700000000)
		s.AppendLastPosition(ctx, "DM04", "N0CALL", 1700000010)

		packed, _, _ := s.cache.Get(ctx, cache.NamespaceLastPositions, "DM04")
		Expect(splitRecords(packed)).To(HaveLen(1))
	})

	It("keeps entries from distinct sources", func() {
		s.AppendLastPosition(ctx, "DM04", "N0CALL", 1700000000)
		s.AppendLastPosition(ctx, "DM04", "N1CALL", 1700000010)

		packed, _, _ := s.cache.Get(ctx, cache.NamespaceLastPositions, "DM04")
		Expect(splitRecords(packed)).To(HaveLen(2))
	})
})

var _ = Describe("directionWord", func() {
	DescribeTable("buckets course into a cardinal or hyphenated diagonal",
		func(course float64, expected string) {
			Expect(directionWord(course)).To(Equal(expected))
		},
		Entry("due north", 0.0, "north"),
		Entry("due east", 90.0, "east"),
		Entry("due south", 180.0, "south"),
		Entry("due west", 270.0, "west"),
		Entry("wraps past 360", 361.0, "north"),
		Entry("northeast diagonal", 45.0, "north-east"),
		Entry("southeast diagonal", 135.0, "south-east"),
		Entry("southwest diagonal", 225.0, "south-west"),
		Entry("northwest diagonal", 315.0, "north-west"),
	)
})
