package tracker

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"math/rand"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/go-torrent/wire/internal/xlog"
)

// udpProtocolMagic is the fixed connection-id BEP-15 uses in a connect
// request, spec §4.3.3 step 1.
const udpProtocolMagic uint64 = 0x41727101980

const (
	udpActionConnect  uint32 = 0
	udpActionAnnounce uint32 = 1
)

var udpLog = xlog.For("tracker.udp")

// ErrTransactionMismatch is returned internally (never to the caller —
// Announce always maps it to an absent response) when a UDP tracker
// answers with a transaction id that doesn't match the request.
var ErrTransactionMismatch = errors.New("tracker: udp transaction id mismatch")

// UDPTracker announces over BEP-15 UDP, spec §4.3.3/§6.4.
//
// Structured after the connect/announce packet layout and
// unmarshallAnnounce approach of a typical BEP-15 client, generalized to
// bind a fresh socket per announce call (spec §4.3.3: "over a single UDP
// socket bound per announce") instead of holding one long-lived
// *net.UDPConn across calls, and to validate the response action and
// transaction id explicitly rather than trusting the buffer offsets
// blindly.
type UDPTracker struct {
	Host string // "host:port"
}

// NewUDPTracker builds a UDPTracker for host ("host:port").
func NewUDPTracker(host string) (*UDPTracker, error) {
	return &UDPTracker{Host: host}, nil
}

// Announce runs the full 4-step BEP-15 exchange. Per spec §4.3.3, the
// socket read timeout is budget/2, and any validation mismatch or IO error
// yields an absent response rather than a non-nil error.
func (t *UDPTracker) Announce(ctx context.Context, req Request, budget time.Duration) (*Response, error) {
	log := udpLog.With().Str("host", t.Host).Logger()

	addr, err := net.ResolveUDPAddr("udp4", t.Host)
	if err != nil {
		log.Debug().Err(err).Msg("resolving tracker address")
		return nil, nil
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		log.Debug().Err(err).Msg("dialing tracker")
		return nil, nil
	}
	defer conn.Close()

	readTimeout := budget / 2
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < readTimeout {
			readTimeout = remaining
		}
	}

	connID, err := t.connect(conn, readTimeout)
	if err != nil {
		log.Debug().Err(err).Msg("connect step failed")
		return nil, nil
	}

	resp, err := t.announce(conn, connID, req, readTimeout)
	if err != nil {
		log.Debug().Err(err).Msg("announce step failed")
		return nil, nil
	}
	return resp, nil
}

func (t *UDPTracker) connect(conn *net.UDPConn, readTimeout time.Duration) (connectionID uint64, err error) {
	txID := rand.Uint32()

	var req [16]byte
	binary.BigEndian.PutUint64(req[0:8], udpProtocolMagic)
	binary.BigEndian.PutUint32(req[8:12], udpActionConnect)
	binary.BigEndian.PutUint32(req[12:16], txID)

	if _, err := conn.Write(req[:]); err != nil {
		return 0, errors.Wrap(err, "writing connect request")
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	var resp [16]byte
	n, err := conn.Read(resp[:])
	if err != nil {
		return 0, errors.Wrap(err, "reading connect response")
	}
	if n < 16 {
		return 0, errors.Errorf("connect response too short: %d bytes", n)
	}

	action := binary.BigEndian.Uint32(resp[0:4])
	gotTx := binary.BigEndian.Uint32(resp[4:8])
	if action != udpActionConnect {
		return 0, errors.Errorf("connect response action = %d, want %d", action, udpActionConnect)
	}
	if gotTx != txID {
		return 0, errors.Wrapf(ErrTransactionMismatch, "connect: got %d, want %d", gotTx, txID)
	}

	return binary.BigEndian.Uint64(resp[8:16]), nil
}

func (t *UDPTracker) announce(conn *net.UDPConn, connID uint64, req Request, readTimeout time.Duration) (*Response, error) {
	txID := rand.Uint32()

	var pkt [98]byte
	binary.BigEndian.PutUint64(pkt[0:8], connID)
	binary.BigEndian.PutUint32(pkt[8:12], udpActionAnnounce)
	binary.BigEndian.PutUint32(pkt[12:16], txID)
	copy(pkt[16:36], req.InfoHash.Bytes())
	copy(pkt[36:56], req.PeerID.Bytes())
	binary.BigEndian.PutUint64(pkt[56:64], req.Downloaded)
	binary.BigEndian.PutUint64(pkt[64:72], req.Left)
	binary.BigEndian.PutUint64(pkt[72:80], req.Uploaded)
	binary.BigEndian.PutUint32(pkt[80:84], req.Event.udpAction())
	binary.BigEndian.PutUint32(pkt[84:88], ipToUint32(req.IP))
	binary.BigEndian.PutUint32(pkt[88:92], udpKey(req.Key))
	binary.BigEndian.PutUint32(pkt[92:96], uint32(req.NumWant))
	binary.BigEndian.PutUint16(pkt[96:98], req.Port)

	if _, err := conn.Write(pkt[:]); err != nil {
		return nil, errors.Wrap(err, "writing announce request")
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	numWant := int(req.NumWant)
	if numWant <= 0 {
		numWant = 50
	}
	buf := make([]byte, 20+6*numWant)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, errors.Wrap(err, "reading announce response")
	}
	if n < 20 {
		return nil, errors.Errorf("announce response too short: %d bytes", n)
	}
	buf = buf[:n]

	action := binary.BigEndian.Uint32(buf[0:4])
	gotTx := binary.BigEndian.Uint32(buf[4:8])
	if action != udpActionAnnounce {
		return nil, errors.Errorf("announce response action = %d, want %d", action, udpActionAnnounce)
	}
	if gotTx != txID {
		return nil, errors.Wrapf(ErrTransactionMismatch, "announce: got %d, want %d", gotTx, txID)
	}

	resp := &Response{
		Interval:   int32(binary.BigEndian.Uint32(buf[8:12])),
		Incomplete: int32(binary.BigEndian.Uint32(buf[12:16])), // leechers
		Complete:   int32(binary.BigEndian.Uint32(buf[16:20])), // seeders
	}

	for i := 20; i+6 <= len(buf); i += 6 {
		resp.Peers = append(resp.Peers, PeerAddr{
			IP:   append([]byte(nil), buf[i:i+4]...),
			Port: binary.BigEndian.Uint16(buf[i+4 : i+6]),
		})
	}

	return resp, nil
}

// ipToUint32 encodes the announce packet's ip field: "ip(4) or -1", meaning
// an unset IP (let the tracker use the packet's source address) is written
// as 0xFFFFFFFF, not 0.
func ipToUint32(ip string) uint32 {
	parsed := net.ParseIP(ip).To4()
	if ip == "" || parsed == nil {
		return 0xFFFFFFFF
	}
	return binary.BigEndian.Uint32(parsed)
}

// udpKey resolves spec §9 Open Question 1: derive a stable per-client key
// from Request.Key when the caller supplied one (CRC32-folded to fit the
// wire's 4-byte field), falling back to a random value when it's empty so
// a caller that never sets Key still gets a spec-compliant announce.
func udpKey(key string) uint32 {
	if key == "" {
		return rand.Uint32()
	}
	return crc32.ChecksumIEEE([]byte(key))
}
