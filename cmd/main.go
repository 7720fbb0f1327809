package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homie2mqtt/internal/clientmqtt"
	"homie2mqtt/internal/config"
	"homie2mqtt/internal/homie"
	"homie2mqtt/internal/logger"
	"homie2mqtt/internal/metrics"
	"homie2mqtt/internal/netaddr"
	"homie2mqtt/internal/sources"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "configs/conf.toml", "Path to configuration file")
}

func main() {
	flag.Parse()
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		fmt.Printf("configuration file read error: %v", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Printf("failed to create a logger: %v", err)
		os.Exit(1)
	}

	log.With(logger.Fields{"module": "logger"}).Debug("newLogger created ok")

	heating := sources.NewHeating(4, 3, true)
	ow := sources.NewOneWire()
	tank := sources.NewTank(cfg.Homie.TankFull, func() {
		log.With(logger.Fields{"module": "tank"}).Info("measurement requested")
	})

	device := &homie.Device{
		ID:             cfg.Homie.DeviceID,
		Name:           cfg.Homie.Name,
		Implementation: cfg.Homie.Implementation,
		Nodes:          []*homie.Node{ow.Node(), tank.Node(), heating.Node()},
	}
	device.LocalIP, device.MAC, err = netaddr.Find(cfg.Homie.Interface)
	if err != nil {
		log.With(logger.Fields{"module": "homie"}).Warnf("address discovery failed, $localip and $mac are not published: %v", err)
	}
	if err = device.Validate(); err != nil {
		log.With(logger.Fields{"module": "homie"}).Errorf("invalid device description: %v", err)
		os.Exit(1)
	}

	m := metrics.New()
	var metricsServer *metrics.Server
	if cfg.Metrics.Listen != "" {
		metricsServer = metrics.NewServer(log, cfg.Metrics.Listen, m)
		metricsServer.Start()
	}

	client := clientmqtt.NewClient(log, ConvertConfigClientMQTT(cfg.MQTT, cfg.Homie), device, m)
	log.With(logger.Fields{"module": "mqtt"}).Debug("NewClient created ok")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	if err = client.Start(ctx); err != nil {
		log.Error("failed to start MQTT service:", err.Error())
		cancel()
	}

	go periodic(ctx, cfg.Homie.Periodic(), func() { client.Do(heating.Periodic) })

	<-ctx.Done()

	if err := client.Stop(); err != nil {
		log.Error("failed to stop MQTT service:", err.Error())
	}

	if metricsServer != nil {
		stopCtx, stop := context.WithTimeout(context.Background(), time.Second)
		if err := metricsServer.Stop(stopCtx); err != nil {
			log.Error(err.Error())
		}
		stop()
	}

	log.Info("shutdown complete")
}

func periodic(ctx context.Context, every time.Duration, fn func()) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}

// ConvertConfigClientMQTT converts the file configuration for the MQTT client.
func ConvertConfigClientMQTT(cfg config.MQTTConf, h config.HomieConf) clientmqtt.MQTTConf {
	return clientmqtt.MQTTConf{
		ClientID:    cfg.ClientID,
		Schema:      "tcp",
		Host:        cfg.Host,
		Port:        cfg.Port,
		User:        cfg.User,
		Password:    cfg.Password,
		MaxInflight: cfg.MaxInflight,
		KeepAlive:   time.Duration(cfg.KeepAlive) * time.Second,
		Poll:        h.Poll(),
	}
}
