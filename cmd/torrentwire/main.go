// Command torrentwire is an example collaborator for this module, not part
// of its core API: it parses a .torrent file, announces to every tracker
// the metainfo names, and prints the peers it discovers. It performs no
// piece download or disk I/O — that's explicitly out of this module's
// scope.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-torrent/wire/metainfo"
	"github.com/go-torrent/wire/tracker"
)

func printHelp() {
	fmt.Printf("torrentwire V1.0\nUsage:\n\ttorrentwire -port=<Port> <torrentfile>\n")
	flag.PrintDefaults()
}

func randomPeerID() metainfo.PeerID {
	var b [20]byte
	copy(b[:], "-TW0001-")
	if _, err := rand.Read(b[8:]); err != nil {
		log.Fatalf("generating peer id: %s", err)
	}
	id, _ := metainfo.NewPeerID(b[:])
	return id
}

func main() {
	log.SetFlags(0)
	port := flag.Int("port", 6881, "local port to announce")
	budget := flag.Duration("budget", 10*time.Second, "per-tracker announce time budget")
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		printHelp()
		os.Exit(2)
	}

	meta, err := metainfo.FromFile(args[0])
	if err != nil {
		log.Fatalf("parsing torrent file: %s", err)
	}

	trackers, err := tracker.ForMetainfo(meta)
	if err != nil {
		log.Fatalf("building trackers: %s", err)
	}

	req := tracker.Request{
		InfoHash:   meta.InfoHash,
		PeerID:     randomPeerID(),
		Port:       uint16(*port),
		Left:       meta.Info.TotalLength(),
		Event:      tracker.EventStarted,
		Compact:    true,
		NumWant:    50,
	}

	ctx := context.Background()
	seen := make(map[string]struct{})
	for _, t := range trackers {
		resp, err := t.Announce(ctx, req, *budget)
		if err != nil {
			log.Fatalf("announcing: %s", err)
		}
		if resp == nil {
			fmt.Println("tracker: no response")
			continue
		}
		if resp.FailureReason != nil {
			fmt.Printf("tracker failure: %s\n", *resp.FailureReason)
			continue
		}
		for _, p := range resp.Peers {
			key := fmt.Sprintf("%s:%d", p.IP, p.Port)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			fmt.Printf("peer %s:%d\n", p.IP, p.Port)
		}
	}

	fmt.Printf("%d unique peer(s) discovered\n", len(seen))
}
