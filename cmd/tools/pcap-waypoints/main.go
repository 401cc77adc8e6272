// Command pcap-waypoints extracts reference line waypoints from a recorded
// drive log: a packet capture of NMEA sentences broadcast over UDP. It
// replays the capture through the GPS recorder as if the fixes were arriving
// live, driving the recorder clock from capture timestamps, and writes the
// surviving waypoints as CSV.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/pathframe/internal/gpsfeed"
	"github.com/banshee-data/pathframe/internal/timeutil"
	"github.com/banshee-data/pathframe/refline"
)

// Config holds the extraction settings.
type Config struct {
	PCAPFile    string
	OutputFile  string
	UDPPort     int
	MinSpacingM float64
	Verbose     bool
}

// ExtractResult summarizes one pass over a capture.
type ExtractResult struct {
	Packets   int
	Datagrams int
	Sentences int
	Stats     gpsfeed.RecorderStats
	Waypoints []refline.Waypoint
	Span      time.Duration
}

func main() {
	cfg := parseFlags()

	if cfg.PCAPFile == "" {
		fmt.Fprintln(os.Stderr, "Error: pcap file is required")
		flag.Usage()
		os.Exit(1)
	}
	if _, err := os.Stat(cfg.PCAPFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: pcap file not found: %s\n", cfg.PCAPFile)
		os.Exit(1)
	}

	result, err := extractWaypoints(cfg)
	if err != nil {
		log.Fatalf("Extraction failed: %v", err)
	}

	printSummary(cfg, result)

	out, err := os.Create(cfg.OutputFile)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", cfg.OutputFile, err)
	}
	defer out.Close()
	if err := refline.WriteWaypoints(out, result.Waypoints); err != nil {
		log.Fatalf("Failed to write waypoints: %v", err)
	}
	log.Printf("Wrote %d waypoints to %s", len(result.Waypoints), cfg.OutputFile)
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.PCAPFile, "pcap", "", "Path to pcap/pcapng drive log (required)")
	flag.StringVar(&cfg.OutputFile, "o", "waypoints.csv", "Output waypoints CSV path")
	flag.IntVar(&cfg.UDPPort, "port", 10110, "UDP port carrying NMEA sentences")
	flag.Float64Var(&cfg.MinSpacingM, "min-spacing", 0.25, "Minimum spacing between waypoints in meters")
	flag.BoolVar(&cfg.Verbose, "v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Extracts reference line waypoints from a recorded drive log:\n")
		fmt.Fprintf(os.Stderr, "  1. Read UDP datagrams on the NMEA port from the capture\n")
		fmt.Fprintf(os.Stderr, "  2. Parse GGA/RMC sentences into fixes\n")
		fmt.Fprintf(os.Stderr, "  3. Project fixes onto a local plane and thin them by spacing\n")
		fmt.Fprintf(os.Stderr, "  4. Write the surviving waypoints as CSV\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -pcap drive.pcap -o loop.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -pcap drive.pcapng -port 2000 -min-spacing 1.0\n", os.Args[0])
	}

	flag.Parse()
	return cfg
}

// openPacketSource opens a capture in either classic pcap or pcapng framing.
func openPacketSource(path string) (*gopacket.PacketSource, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if r, err := pcapgo.NewReader(f); err == nil {
		return gopacket.NewPacketSource(r, r.LinkType()), f, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, err
	}
	ng, err := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("not a pcap or pcapng capture: %w", err)
	}
	return gopacket.NewPacketSource(ng, ng.LinkType()), f, nil
}

func extractWaypoints(cfg Config) (*ExtractResult, error) {
	source, closer, err := openPacketSource(cfg.PCAPFile)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// The recorder clock follows capture timestamps, not the wall clock,
	// so the extracted stats describe the original drive.
	clock := timeutil.NewMockClock(time.Time{})
	logf := log.Printf
	if !cfg.Verbose {
		logf = func(string, ...any) {}
	}
	rec := gpsfeed.NewRecorder(cfg.MinSpacingM, clock, logf)

	res := &ExtractResult{}
	var first, last time.Time
	for packet := range source.Packets() {
		res.Packets++

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp := udpLayer.(*layers.UDP)
		if int(udp.DstPort) != cfg.UDPPort && int(udp.SrcPort) != cfg.UDPPort {
			continue
		}
		res.Datagrams++

		if ts := packet.Metadata().Timestamp; !ts.IsZero() {
			clock.Set(ts)
			if first.IsZero() {
				first = ts
			}
			last = ts
		}

		for _, line := range splitSentences(udp.Payload) {
			res.Sentences++
			rec.HandleSentence(line)
		}

		if cfg.Verbose && res.Datagrams%1000 == 0 {
			log.Printf("Processed %d datagrams, %d fixes", res.Datagrams, rec.Stats().Fixes)
		}
	}

	res.Stats = rec.Stats()
	res.Waypoints = rec.Waypoints()
	if !first.IsZero() {
		res.Span = last.Sub(first)
	}
	if len(res.Waypoints) == 0 {
		return nil, fmt.Errorf("no usable GPS fixes on UDP port %d", cfg.UDPPort)
	}
	return res, nil
}

// splitSentences splits a datagram payload into candidate NMEA sentences.
// Receivers commonly batch several CRLF-terminated sentences per datagram.
func splitSentences(payload []byte) []string {
	var out []string
	for _, line := range strings.Split(string(payload), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "$") {
			out = append(out, line)
		}
	}
	return out
}

func printSummary(cfg Config, res *ExtractResult) {
	fmt.Println("\n=== Drive Log Extraction ===")
	fmt.Printf("Capture: %s\n", cfg.PCAPFile)
	fmt.Printf("Packets: %d (%d NMEA datagrams on port %d)\n", res.Packets, res.Datagrams, cfg.UDPPort)
	fmt.Printf("Sentences: %d\n", res.Sentences)
	fmt.Printf("Fixes: %d (%d dropped under %.2fm spacing)\n", res.Stats.Fixes, res.Stats.Dropped, cfg.MinSpacingM)
	fmt.Printf("Waypoints: %d\n", len(res.Waypoints))
	if res.Span > 0 {
		fmt.Printf("Capture Span: %s\n", res.Span.Round(time.Second))
	}
}
