package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	log "github.com/sirupsen/logrus"
)

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}

var (
	addrs    = flag.String("addr", "localhost:27017", "comma-separated host:port list to wait for")
	timeout  = flag.Duration("timeout", 30*time.Second, "give up after this long")
	interval = flag.Duration("interval", time.Second, "delay between attempts")
)

// waitFor dials addr until a TCP connection succeeds or ctx is done.
func waitFor(ctx context.Context, addr string, interval time.Duration) error {
	dialer := net.Dialer{Timeout: interval}
	for {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			_ = conn.Close()
			log.WithField("addr", addr).Info("TCP connection available")
			return nil
		}
		log.WithError(err).WithField("addr", addr).Debug("connection not yet available")

		select {
		case <-ctx.Done():
			return fmt.Errorf("could not open TCP connection on %s: %w", addr, ctx.Err())
		case <-time.After(interval):
		}
	}
}

// waitForAll waits for every address concurrently.
func waitForAll(ctx context.Context, addrs []string, interval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, addr := range addrs {
		addr := strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		g.Go(func() error { return waitFor(ctx, addr, interval) })
	}
	return g.Wait()
}

func main() {
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := waitForAll(ctx, strings.Split(*addrs, ","), *interval); err != nil {
		log.WithError(err).Fatal("dependencies not available")
	}
}
