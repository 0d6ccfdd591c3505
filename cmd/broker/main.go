// Command broker runs a standalone MQTT 3.1.1 server on the configured TCP
// address until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/axmq/broker/broker"
	"github.com/axmq/broker/config"
	"github.com/axmq/broker/network"
	"github.com/axmq/broker/session"
)

func main() {
	addr := flag.String("addr", "localhost:1883", "TCP address to listen on")
	flag.Parse()

	cfg := config.DefaultConfig()
	cfg.Listener.Address = *addr
	log := cfg.NewLogger()

	b := broker.New(cfg.Broker)

	pool, err := network.NewPool(cfg.Pool)
	if err != nil {
		log.Error("failed to create connection pool", "err", err)
		os.Exit(1)
	}

	listener, err := network.NewListener(cfg.Listener, pool)
	if err != nil {
		log.Error("failed to create listener", "err", err)
		os.Exit(1)
	}

	listener.OnConnection(func(conn *network.Connection) error {
		sess := session.New(conn, b, log)
		go sess.Run()
		return nil
	})

	if err := listener.Start(); err != nil {
		log.Error("failed to start listener", "err", err)
		os.Exit(1)
	}
	log.Info("broker listening", "addr", *addr)

	ctx, cancel := context.WithCancel(context.Background())
	go b.RetransmitLoop(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()
	_ = listener.Close()
	_ = pool.Close()
}
