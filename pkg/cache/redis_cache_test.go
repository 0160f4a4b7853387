package cache

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var _ = Describe("redisCache", func() {
	var (
		server *miniredis.Miniredis
		c      Cache
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		server, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())

		c = NewRedisCache(&redis.Options{Addr: server.Addr()}, logrus.NewEntry(logrus.New()))
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(c.Close()).To(Succeed())
		server.Close()
	})

	It("reports a miss for an unset key", func() {
		_, found, err := c.Get(ctx, NamespaceCallsign, "N0CALL")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})

	It("round-trips a value through Put/Get", func() {
		Expect(c.Put(ctx, NamespaceCallsign, "N0CALL", "42", time.Minute)).To(Succeed())

		v, found, err := c.Get(ctx, NamespaceCallsign, "N0CALL")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(v).To(Equal("42"))
	})

	It("namespaces keys so identical keys in different namespaces do not collide", func() {
		Expect(c.Put(ctx, NamespaceCallsign, "X", "callsign-value", time.Minute)).To(Succeed())
		Expect(c.Put(ctx, NamespaceDest, "X", "dest-value", time.Minute)).To(Succeed())

		v, _, _ := c.Get(ctx, NamespaceCallsign, "X")
		Expect(v).To(Equal("callsign-value"))

		v, _, _ = c.Get(ctx, NamespaceDest, "X")
		Expect(v).To(Equal("dest-value"))
	})

	It("expires a key after its TTL elapses", func() {
		Expect(c.Put(ctx, NamespacePosition, "K", "v", time.Second)).To(Succeed())
		server.FastForward(2 * time.Second)

		_, found, err := c.Get(ctx, NamespacePosition, "K")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})

	It("surfaces a connection error when Redis is unreachable", func() {
		down := NewRedisCache(&redis.Options{
			Addr:        "127.0.0.1:1",
			DialTimeout: 50 * time.Millisecond,
		}, nil)
		defer down.Close()

		_, _, err := down.Get(ctx, NamespaceCallsign, "N0CALL")
		Expect(err).To(HaveOccurred())
	})
})
