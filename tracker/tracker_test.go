package tracker

import (
	"context"
	"encoding/binary"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-torrent/wire/metainfo"
)

func testRequest(t *testing.T) Request {
	t.Helper()
	ih, _ := metainfo.NewHash(make([]byte, 20))
	pid, _ := metainfo.NewPeerID(bytes20('p'))
	return Request{
		InfoHash:   ih,
		PeerID:     pid,
		Port:       6881,
		Event:      EventStarted,
		WantPeerID: true,
		NumWant:    8,
	}
}

func bytes20(fill byte) []byte {
	b := make([]byte, 20)
	for i := range b {
		b[i] = fill
	}
	return b
}

func TestBuildQueryScenario(t *testing.T) {
	req := testRequest(t)
	q := buildQuery(req)

	parsed, err := url.ParseQuery(q)
	if err != nil {
		t.Fatalf("query %q does not parse: %v", q, err)
	}
	if got := parsed.Get("event"); got != "started" {
		t.Errorf("event = %q, want started", got)
	}
	if got := parsed.Get("numwant"); got != "8" {
		t.Errorf("numwant = %q, want 8", got)
	}
	if got := parsed.Get("no_peer_id"); got != "0" {
		t.Errorf("no_peer_id = %q, want 0", got)
	}
	if _, present := parsed["compact"]; present {
		t.Error("compact must not be present when Request.Compact is false")
	}
}

func TestURLTrackerCompactPeerList(t *testing.T) {
	// 192.168.0.1:6881 in compact form.
	compact := []byte{192, 168, 0, 1, 0x1a, 0xe1} // 0x1ae1 == 6881
	respBody := "d8:completei1e10:incompletei0e8:intervali1800e5:peers6:" + string(compact) + "e"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("compact") != "" {
			t.Errorf("did not expect compact param, request was %s", r.URL.RawQuery)
		}
		w.Write([]byte(respBody))
	}))
	defer srv.Close()

	tr, err := NewURLTracker(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	req := testRequest(t)
	req.Compact = false

	resp, err := tr.Announce(context.Background(), req, time.Second)
	if err != nil {
		t.Fatalf("Announce returned error: %v", err)
	}
	if resp == nil {
		t.Fatal("expected a response, got nil")
	}
	if len(resp.Peers) != 1 {
		t.Fatalf("len(Peers) = %d, want 1", len(resp.Peers))
	}
	p := resp.Peers[0]
	if !p.IP.Equal(net.IPv4(192, 168, 0, 1)) {
		t.Errorf("peer IP = %v, want 192.168.0.1", p.IP)
	}
	if p.Port != 6881 {
		t.Errorf("peer port = %d, want 6881", p.Port)
	}
	if p.ID != nil {
		t.Errorf("expected absent peer id for compact entry, got %v", p.ID)
	}
}

func TestURLTrackerFailureReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("d14:failure reason14:not registerede"))
	}))
	defer srv.Close()

	tr, err := NewURLTracker(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := tr.Announce(context.Background(), testRequest(t), time.Second)
	if err != nil {
		t.Fatalf("Announce returned error: %v", err)
	}
	if resp == nil || resp.FailureReason == nil {
		t.Fatal("expected a response with a failure reason")
	}
	if *resp.FailureReason != "not registered" {
		t.Errorf("failure reason = %q", *resp.FailureReason)
	}
}

func TestURLTrackerNetworkErrorIsAbsentResponse(t *testing.T) {
	tr, err := NewURLTracker("http://127.0.0.1:1") // nothing listens here
	if err != nil {
		t.Fatal(err)
	}
	resp, err := tr.Announce(context.Background(), testRequest(t), 200*time.Millisecond)
	if err != nil {
		t.Fatalf("expected nil error for network failure, got %v", err)
	}
	if resp != nil {
		t.Fatalf("expected nil response, got %v", resp)
	}
}

// fakeUDPTracker drives the exact byte exchange of BEP-15 scenario 5 from
// spec §8: connect action=0 with matching txid, announce action=1 with
// matching txid, interval=1800, leechers=3, seeders=5, two peer entries.
func fakeUDPTracker(t *testing.T, mismatchAnnounceAction bool) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		buf := make([]byte, 4096)
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		txID := binary.BigEndian.Uint32(buf[12:16])
		var connResp [16]byte
		binary.BigEndian.PutUint32(connResp[0:4], udpActionConnect)
		binary.BigEndian.PutUint32(connResp[4:8], txID)
		binary.BigEndian.PutUint64(connResp[8:16], 0xCAFEBABEDEADBEEF)
		conn.WriteToUDP(connResp[:], addr)

		n, addr, err = conn.ReadFromUDP(buf)
		if err != nil || n < 98 {
			return
		}
		annTx := binary.BigEndian.Uint32(buf[12:16])
		action := udpActionAnnounce
		if mismatchAnnounceAction {
			action = udpActionConnect
		}
		resp := make([]byte, 20+12)
		binary.BigEndian.PutUint32(resp[0:4], action)
		binary.BigEndian.PutUint32(resp[4:8], annTx)
		binary.BigEndian.PutUint32(resp[8:12], 1800)
		binary.BigEndian.PutUint32(resp[12:16], 3)
		binary.BigEndian.PutUint32(resp[16:20], 5)
		copy(resp[20:26], []byte{10, 0, 0, 1, 0x1a, 0xe1})
		copy(resp[26:32], []byte{10, 0, 0, 2, 0x1a, 0xe2})
		conn.WriteToUDP(resp, addr)
	}()
	return conn
}

func TestUDPTrackerAnnounceScenario(t *testing.T) {
	conn := fakeUDPTracker(t, false)
	defer conn.Close()

	tr, err := NewUDPTracker(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}

	resp, err := tr.Announce(context.Background(), testRequest(t), 2*time.Second)
	if err != nil {
		t.Fatalf("Announce returned error: %v", err)
	}
	if resp == nil {
		t.Fatal("expected a response")
	}
	if resp.Interval != 1800 {
		t.Errorf("interval = %d, want 1800", resp.Interval)
	}
	if resp.Complete != 5 {
		t.Errorf("complete (seeders) = %d, want 5", resp.Complete)
	}
	if resp.Incomplete != 3 {
		t.Errorf("incomplete (leechers) = %d, want 3", resp.Incomplete)
	}
	if len(resp.Peers) != 2 {
		t.Fatalf("len(Peers) = %d, want 2", len(resp.Peers))
	}
}

func TestUDPTrackerMismatchedActionIsAbsentResponse(t *testing.T) {
	conn := fakeUDPTracker(t, true)
	defer conn.Close()

	tr, err := NewUDPTracker(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}

	resp, err := tr.Announce(context.Background(), testRequest(t), 2*time.Second)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if resp != nil {
		t.Fatalf("expected absent response for mismatched action, got %v", resp)
	}
}

type stubTracker struct {
	name string
	resp *Response
	err  error
	fn   func()
}

func (s *stubTracker) Announce(ctx context.Context, req Request, budget time.Duration) (*Response, error) {
	if s.fn != nil {
		s.fn()
	}
	return s.resp, s.err
}

func TestBackedTrackerPromotesWinnerToFront(t *testing.T) {
	failing := &stubTracker{name: "failing", resp: nil}
	winner := &stubTracker{name: "winner", resp: &Response{Interval: 100}}
	third := &stubTracker{name: "third", resp: &Response{Interval: 200}}

	bt := NewBackedTracker([]Tracker{failing, winner, third})

	resp, err := bt.Announce(context.Background(), testRequest(t), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if resp == nil || resp.Interval != 100 {
		t.Fatalf("expected winner's response, got %v", resp)
	}

	if bt.trackers[0] != Tracker(winner) {
		t.Fatalf("expected winner promoted to front, got order %v", bt.trackers)
	}

	// Second call should try winner first now.
	calls := 0
	winner.fn = func() { calls++ }
	if _, err := bt.Announce(context.Background(), testRequest(t), time.Second); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected winner tried first on second call, calls=%d", calls)
	}
}

func TestBackedTrackerAllFailReturnsAbsent(t *testing.T) {
	bt := NewBackedTracker([]Tracker{
		&stubTracker{resp: nil},
		&stubTracker{resp: nil},
	})
	resp, err := bt.Announce(context.Background(), testRequest(t), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if resp != nil {
		t.Fatalf("expected absent response, got %v", resp)
	}
}

func TestIPToUint32AbsentIsAllOnes(t *testing.T) {
	if got := ipToUint32(""); got != 0xFFFFFFFF {
		t.Fatalf("ipToUint32(\"\") = %#x, want 0xFFFFFFFF", got)
	}
	if got := ipToUint32("not-an-ip"); got != 0xFFFFFFFF {
		t.Fatalf("ipToUint32(unparseable) = %#x, want 0xFFFFFFFF", got)
	}
}

func TestIPToUint32EncodesGivenIP(t *testing.T) {
	if got, want := ipToUint32("10.0.0.1"), uint32(0x0A000001); got != want {
		t.Fatalf("ipToUint32(\"10.0.0.1\") = %#x, want %#x", got, want)
	}
}
