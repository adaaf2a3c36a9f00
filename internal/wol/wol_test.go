package wol_test

import (
	"bytes"
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/wol-monitor/internal/wol"
)

var _ = Describe("MagicPacket", func() {
	mac := []byte{0x00, 0x11, 0x22, 0xaa, 0xbb, 0xcc}

	DescribeTable("accepted notations",
		func(input string) {
			packet, err := wol.MagicPacket(input)
			Expect(err).NotTo(HaveOccurred())
			Expect(packet).To(HaveLen(102))
			Expect(packet[:6]).To(Equal(bytes.Repeat([]byte{0xff}, 6)))
			Expect(packet[6:]).To(Equal(bytes.Repeat(mac, 16)))
		},
		Entry("colons", "00:11:22:aa:bb:cc"),
		Entry("dashes", "00-11-22-AA-BB-CC"),
		Entry("dots", "0011.22aa.bbcc"),
		Entry("bare", "001122aabbcc"),
	)

	DescribeTable("rejected input",
		func(input string) {
			_, err := wol.MagicPacket(input)
			Expect(err).To(MatchError(wol.ErrInvalidMAC))
		},
		Entry("empty", ""),
		Entry("too short", "00:11:22:aa:bb"),
		Entry("not hex", "zz:11:22:aa:bb:cc"),
	)
})

var _ = Describe("Sender", func() {
	It("should deliver the magic packet over UDP", func() {
		conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(conn.Close)

		port := conn.LocalAddr().(*net.UDPAddr).Port
		sender := wol.NewSender("127.0.0.1", port)
		Expect(sender.Send(context.Background(), "00:11:22:aa:bb:cc")).To(Succeed())

		buf := make([]byte, 256)
		Expect(conn.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())
		n, _, err := conn.ReadFrom(buf)
		Expect(err).NotTo(HaveOccurred())

		expected, _ := wol.MagicPacket("00:11:22:aa:bb:cc")
		Expect(buf[:n]).To(Equal(expected))
	})

	It("should refuse invalid MAC addresses before dialing", func() {
		err := wol.NewSender("127.0.0.1", 9).Send(context.Background(), "nope")
		Expect(err).To(MatchError(wol.ErrInvalidMAC))
	})

	It("should apply defaults", func() {
		s := wol.NewSender("", 0)
		Expect(s.Broadcast).To(Equal(wol.DefaultBroadcast))
		Expect(s.Port).To(Equal(wol.DefaultPort))
	})
})

var _ = Describe("Limiter", func() {
	It("should reject attempts beyond the limit until the window slides", func() {
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		l := wol.NewLimiterWithClock(2, time.Minute, func() time.Time { return now })

		Expect(l.Allow("nas")).To(BeTrue())
		Expect(l.Allow("nas")).To(BeTrue())
		Expect(l.Allow("nas")).To(BeFalse())
		Expect(l.Allow("desktop")).To(BeTrue())

		now = now.Add(61 * time.Second)
		Expect(l.Allow("nas")).To(BeTrue())
	})

	It("should not limit when max is zero", func() {
		l := wol.NewLimiter(0, time.Minute)
		for i := 0; i < 50; i++ {
			Expect(l.Allow("nas")).To(BeTrue())
		}
	})
})
