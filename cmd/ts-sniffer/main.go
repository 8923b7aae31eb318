package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"trafficscope/internal/api"
	"trafficscope/internal/bus"
	"trafficscope/internal/config"
	"trafficscope/internal/export"
	"trafficscope/internal/geo"
	"trafficscope/internal/model"
	"trafficscope/internal/notification"
	"trafficscope/internal/notify"
	"trafficscope/internal/sniffer"
	"trafficscope/internal/traffic"

	"github.com/google/gopacket/pcap"
)

const defaultSnapshotLen int32 = 1600

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file.")
	iface := flag.String("iface", "", "Interface to capture from (overrides the config).")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *iface != "" {
		cfg.Capture.Interface = *iface
	}
	if cfg.Capture.Interface == "" {
		log.Fatalf("No capture interface configured; set capture.interface or pass -iface.")
	}

	filters, err := cfg.Filters.Parse()
	if err != nil {
		log.Fatalf("Invalid filter config: %v", err)
	}

	// Geolocation is optional; without a database every connection carries an
	// empty country code.
	var resolver *geo.Resolver
	if cfg.GeoIP.MMDBPath != "" {
		resolver, err = geo.Open(cfg.GeoIP.MMDBPath)
		if err != nil {
			log.Fatalf("Failed to open country database: %v", err)
		}
		defer resolver.Close()
	}

	infoTraffic := traffic.New()
	snf := sniffer.New(infoTraffic, resolver)

	device, err := sniffer.FindDevice(cfg.Capture.Interface)
	if err != nil {
		log.Fatalf("Failed to look up capture device: %v", err)
	}

	snapshotLen := cfg.Capture.SnapshotLen
	if snapshotLen <= 0 {
		snapshotLen = defaultSnapshotLen
	}
	handle, err := pcap.OpenLive(device.Name, snapshotLen, cfg.Capture.Promiscuous, pcap.BlockForever)
	if err != nil {
		log.Fatalf("Error opening device %s: %v", device.Name, err)
	}
	defer handle.Close()
	if cfg.Capture.BPFFilter != "" {
		if err := handle.SetBPFFilter(cfg.Capture.BPFFilter); err != nil {
			log.Fatalf("Failed to set BPF filter: %v", err)
		}
	}

	var publishers []model.AlertPublisher
	if cfg.AlertBus.Enabled {
		publisher, err := bus.NewPublisher(cfg.AlertBus)
		if err != nil {
			log.Fatalf("Failed to create alert publisher: %v", err)
		}
		defer publisher.Close()
		publishers = append(publishers, publisher)
	}
	if cfg.SMTP.Enabled {
		publishers = append(publishers, notification.NewEmailNotifier(cfg.SMTP))
	}

	var player model.Player = notify.NopPlayer{}
	if len(cfg.Notifications.Sounds) > 0 {
		player = notify.NewBeepPlayer(cfg.Notifications.Sounds)
	}

	engine, err := notify.NewEngine(cfg.Notifications, infoTraffic, player, publishers)
	if err != nil {
		log.Fatalf("Failed to create notification engine: %v", err)
	}
	engine.Start()
	defer engine.Stop()

	writers, err := export.NewWriters(cfg.Export)
	if err != nil {
		log.Fatalf("Failed to create snapshot writers: %v", err)
	}
	if len(writers) > 0 {
		exporter := export.NewExporter(infoTraffic, writers)
		exporter.Start()
		defer exporter.Stop()
	}

	if cfg.API.Enabled {
		server := api.NewServer(cfg.API.ListenAddr, infoTraffic, engine)
		server.Start()
		defer server.Stop()
	}

	session := snf.NewSession(device, filters)
	go session.Run(handle)
	log.Printf("Capture started on %s.", device.Name)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping capture...")
	// Invalidate the session, then close the handle: the pending read fails,
	// the worker sees the stale epoch and exits.
	snf.Stop()
}
