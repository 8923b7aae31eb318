package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"

	"trafficscope/internal/config"
	"trafficscope/internal/geo"
	"trafficscope/internal/notify"
	"trafficscope/internal/sniffer"
	"trafficscope/internal/traffic"
	"trafficscope/pkg/pcap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file.")
	filePath := flag.String("file", "", "Pcap file to replay (required).")
	localAddrs := flag.String("local", "", "Comma-separated addresses to treat as local for direction classification.")
	flag.Parse()

	if *filePath == "" {
		log.Fatalf("The -file flag is required.")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	filters, err := cfg.Filters.Parse()
	if err != nil {
		log.Fatalf("Invalid filter config: %v", err)
	}

	var resolver *geo.Resolver
	if cfg.GeoIP.MMDBPath != "" {
		resolver, err = geo.Open(cfg.GeoIP.MMDBPath)
		if err != nil {
			log.Fatalf("Failed to open country database: %v", err)
		}
		defer resolver.Close()
	}

	reader, err := pcap.NewReader(*filePath)
	if err != nil {
		log.Fatalf("Failed to open pcap file: %v", err)
	}
	defer reader.Close()

	infoTraffic := traffic.New()
	snf := sniffer.New(infoTraffic, resolver)

	device := sniffer.Device{Name: "replay"}
	if *localAddrs != "" {
		device.Addresses = strings.Split(*localAddrs, ",")
	}

	// Exhausting the file invalidates the session, so the capture loop exits
	// on the first post-EOF read error.
	reader.SetEOFHandler(snf.Stop)

	session := snf.NewSession(device, filters)
	session.Run(reader)

	// One notification tick over the whole replay, so threshold and favorite
	// alerts fire the same way they would live.
	engine, err := notify.NewEngine(cfg.Notifications, infoTraffic, notify.NopPlayer{}, nil)
	if err != nil {
		log.Fatalf("Failed to create notification engine: %v", err)
	}
	engine.Tick()

	printOverview(infoTraffic, engine)
}

func printOverview(t *traffic.InfoTraffic, engine *notify.Engine) {
	snapshot := t.Snapshot()

	fmt.Printf("Packets captured: %d (%d bytes)\n", snapshot.Totals.AllPackets, snapshot.Totals.AllBytes)
	fmt.Printf("Sent:     %d packets, %d bytes\n", snapshot.Totals.SentPackets, snapshot.Totals.SentBytes)
	fmt.Printf("Received: %d packets, %d bytes\n", snapshot.Totals.ReceivedPackets, snapshot.Totals.ReceivedBytes)

	names := make([]string, 0, len(snapshot.AppProtocols))
	counts := make(map[string]uint64, len(snapshot.AppProtocols))
	for proto, count := range snapshot.AppProtocols {
		names = append(names, proto.String())
		counts[proto.String()] = count
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-8s %d\n", name, counts[name])
	}

	fmt.Printf("Connections: %d\n", len(snapshot.Entries))
	for _, entry := range snapshot.Entries {
		country := entry.Info.Country
		if country == "" {
			country = "--"
		}
		fmt.Printf("  [%3d] %-55s %9d B %7d pkts %-9s %s\n",
			entry.Info.Index, entry.Key, entry.Info.TransmittedBytes,
			entry.Info.TransmittedPackets, entry.Info.TrafficDirection, country)
	}

	if alerts := engine.Notifications(); len(alerts) > 0 {
		fmt.Printf("Alerts: %d\n", len(alerts))
		for _, alert := range alerts {
			fmt.Printf("  %s %s\n", alert.Timestamp(), alert.Kind())
		}
	}
}
