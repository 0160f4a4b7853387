package dbi

import (
	"context"
	"errors"
	"regexp"

	"github.com/DATA-DOG/go-sqlmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aprsworld/ingestd/pkg/aprs"
)

var _ = Describe("InsertPacket", func() {
	var ctx context.Context

	BeforeEach(func() { ctx = context.Background() })

	It("binds a generated uuid through UUID_TO_BIN when UseUUIDPacketIDs is set", func() {
		d, mock := newMockDBI()
		defer d.db.Close()
		d.UseUUIDPacketIDs = true

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO packet (id, create_ts) VALUES (UUID_TO_BIN(?), ?)")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		id, err := d.InsertPacket(ctx, 1700000000)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).NotTo(BeEmpty())
	})

	It("reads back LastInsertId on the autoincrement path", func() {
		d, mock := newMockDBI()
		defer d.db.Close()
		d.UseUUIDPacketIDs = false

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO packet (create_ts) VALUES (?)")).
			WithArgs(int64(1700000000)).
			WillReturnResult(sqlmock.NewResult(99, 1))

		id, err := d.InsertPacket(ctx, 1700000000)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal("99"))
	})
})

var _ = Describe("InjectPosition", func() {
	var (
		ctx context.Context
		p   *aprs.Packet
	)

	BeforeEach(func() {
		ctx = context.Background()
		p = aprs.NewPacket()
		p.SetString(aprs.KeyPositionLatitudeDecimal, "34.1167")
		p.SetString(aprs.KeyPositionLongitudeDecimal, "-118.2")
		p.SetString(aprs.KeySymbolTable, "/")
		p.SetString(aprs.KeySymbolCode, ">")
		p.SetString(aprs.KeyPositionComment, "Test")
	})

	It("writes last_position and last_position_meta, and appends to position tables when not posdup", func() {
		d, mock := newMockDBI()
		defer d.db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO last_position")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO last_position_meta")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO position ")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO position_meta")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		ok, err := d.InjectPosition(ctx, p, PositionInject{PacketID: "1", CallsignID: "1", CreateTS: 1700000000})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("binds the resolved icon_id and name_id onto last_position", func() {
		d, mock := newMockDBI()
		defer d.db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO last_position")).
			WithArgs("1", "1", "34.1167", "-118.2", "/", ">", nil, nil, nil, "Test", "42", "7", int64(1700000000)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO last_position_meta")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO position ")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO position_meta")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		ok, err := d.InjectPosition(ctx, p, PositionInject{
			PacketID: "1", CallsignID: "1", CreateTS: 1700000000, IconID: "42", ObjectNameID: "7",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("skips the position/position_meta append when posdup is set", func() {
		d, mock := newMockDBI()
		defer d.db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO last_position")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO last_position_meta")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		ok, err := d.InjectPosition(ctx, p, PositionInject{PacketID: "1", CallsignID: "1", CreateTS: 1700000000, Posdup: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("additionally upserts last_phg when PHG fields are present", func() {
		d, mock := newMockDBI()
		defer d.db.Close()
		p.SetString(aprs.KeyPHGPower, "5")
		p.SetString(aprs.KeyPHGHeight, "5")
		p.SetString(aprs.KeyPHGGain, "5")
		p.SetString(aprs.KeyPHGDirectivity, "0")

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO last_position")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO last_position_meta")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO last_phg")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO position ")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO position_meta")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		ok, err := d.InjectPosition(ctx, p, PositionInject{PacketID: "1", CallsignID: "1", CreateTS: 1700000000})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("rolls back and returns an error when a write inside the transaction fails", func() {
		d, mock := newMockDBI()
		defer d.db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO last_position")).WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		ok, err := d.InjectPosition(ctx, p, PositionInject{PacketID: "1", CallsignID: "1", CreateTS: 1700000000})
		Expect(err).To(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})
})

var _ = Describe("InjectMessage", func() {
	var (
		ctx context.Context
		p   *aprs.Packet
	)

	BeforeEach(func() {
		ctx = context.Background()
		p = aprs.NewPacket()
		p.SetString(aprs.KeyMessageTarget, "N1CALL")
		p.SetString(aprs.KeyMessageText, "hello")
	})

	It("appends to message and upserts last_message for an ordinary target", func() {
		d, mock := newMockDBI()
		defer d.db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO message ")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO last_message")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		ok, err := d.InjectMessage(ctx, p, MessageInject{PacketID: "1", CallsignID: "1", CreateTS: 1700000000})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("also upserts last_bulletin when the target is a bulletin address", func() {
		d, mock := newMockDBI()
		defer d.db.Close()
		p.SetString(aprs.KeyMessageTarget, "BLN1ABC")

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO message ")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO last_message")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO last_bulletin")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		ok, err := d.InjectMessage(ctx, p, MessageInject{PacketID: "1", CallsignID: "1", CreateTS: 1700000000})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("upserts telemetry_eqns when the body is an EQNS control message", func() {
		d, mock := newMockDBI()
		defer d.db.Close()
		p.SetString(aprs.KeyMessageText, "EQNS.0,1,0")

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO message ")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO last_message")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO telemetry_eqns")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		ok, err := d.InjectMessage(ctx, p, MessageInject{PacketID: "1", CallsignID: "1", CreateTS: 1700000000})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})
})

var _ = Describe("InjectTelemetry", func() {
	It("upserts last_telemetry and appends to telemetry", func() {
		d, mock := newMockDBI()
		defer d.db.Close()

		p := aprs.NewPacket()
		p.SetString(aprs.KeyTelemetrySequence, "005")

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO last_telemetry")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO telemetry ")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		ok, err := d.InjectTelemetry(context.Background(), p, TelemetryInject{PacketID: "1", CallsignID: "1", CreateTS: 1700000000})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})
})

var _ = Describe("InjectRaw", func() {
	It("appends to raw/raw_meta and upserts last_raw/last_raw_meta", func() {
		d, mock := newMockDBI()
		defer d.db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO last_raw ")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO last_raw_meta")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO raw ")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO raw_meta")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		ok, err := d.InjectRaw(context.Background(), "1", 1700000000, "raw body text")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})
})
