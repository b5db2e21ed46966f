// Command suscan-remote-probe drives a remote.Session against a peer
// and prints the delivered event stream, confirming the status
// pipeline end to end (SPEC_FULL.md §6, "CLI").
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/cwsl/suscan-remoteclient/internal/config"
	"github.com/cwsl/suscan-remoteclient/internal/metrics"
	"github.com/cwsl/suscan-remoteclient/internal/proto"
	"github.com/cwsl/suscan-remoteclient/internal/remote"
)

func main() {
	configFlag := flag.String("config", "", "Path to a peer config YAML file (overrides -host/-port/-user/-password)")
	hostFlag := flag.String("host", "", "Peer hostname")
	portFlag := flag.Int("port", 0, "Peer port")
	userFlag := flag.String("user", "", "Username")
	passwordFlag := flag.String("password", "", "Password")
	metricsAddrFlag := flag.String("metrics-addr", "", "If set, serve Prometheus metrics on this address (e.g. :9100)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Remote analyzer probe for %s\n\n", "suscan-remoteclient")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Connect directly\n")
		fmt.Fprintf(os.Stderr, "  %s -host sdr.example.com -port 2390 -user alice -password s3cret\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Connect via a config file\n")
		fmt.Fprintf(os.Stderr, "  %s -config peer.yaml\n", os.Args[0])
	}

	flag.Parse()

	peer, err := resolvePeerConfig(*configFlag, *hostFlag, *portFlag, *userFlag, *passwordFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	var collectors *metrics.Collectors
	if *metricsAddrFlag != "" {
		collectors = metrics.New()
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			logrus.Printf("suscan-remote-probe: serving metrics on %s", *metricsAddrFlag)
			if err := http.ListenAndServe(*metricsAddrFlag, nil); err != nil {
				logrus.Printf("suscan-remote-probe: metrics server: %v", err)
			}
		}()
	}

	sink := remote.NewChannelSink(64)

	sess, err := remote.NewSession(remote.Config{
		Host:     peer.Host,
		Port:     peer.Port,
		User:     peer.User,
		Password: peer.Password,

		ConnectTimeout: millisToDuration(peer.ConnectTimeoutMS),
		AuthTimeout:    millisToDuration(peer.AuthTimeoutMS),
		BodyTimeout:    millisToDuration(peer.BodyTimeoutMS),
		PDUChunkBytes:  peer.PDUChunkBytes,

		Sink:    sink,
		Metrics: metricsOrNil(collectors),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case ev, ok := <-sink.Events():
			if !ok {
				return
			}
			printEvent(ev)
			if ev.Kind == remote.EventHalt {
				return
			}
		case <-sig:
			logrus.Printf("suscan-remote-probe: interrupted, closing session")
			return
		}
	}
}

func printEvent(ev remote.Event) {
	switch ev.Kind {
	case remote.EventStatus:
		fmt.Fprintf(os.Stderr, "status: %s %s\n", statusKindString(ev.Status.Kind), ev.Status.Text)
	case remote.EventSourceInfo:
		fmt.Fprintf(os.Stderr, "source info: sample_rate=%d freq=%.0f bandwidth=%.0f\n",
			ev.SourceInfo.SourceSampRate, ev.SourceInfo.Freq, ev.SourceInfo.Bandwidth)
	case remote.EventPSD:
		fmt.Fprintf(os.Stderr, "psd: t=%.3f sample_rate=%.0f bins=%d\n", ev.PSD.Timestamp, ev.PSD.SampleRate, len(ev.PSD.Bins))
	case remote.EventEOS:
		fmt.Fprintln(os.Stderr, "end of stream")
	case remote.EventHalt:
		fmt.Fprintln(os.Stderr, "halt")
	}
}

func statusKindString(kind proto.StatusKind) string {
	switch kind {
	case proto.StatusProgress:
		return "PROGRESS"
	case proto.StatusSuccess:
		return "SUCCESS"
	case proto.StatusFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

func metricsOrNil(c *metrics.Collectors) remote.Metrics {
	if c == nil {
		return nil
	}
	return c
}

func millisToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func resolvePeerConfig(configPath, host string, port int, user, password string) (*config.PeerConfig, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	peer := &config.PeerConfig{Host: host, Port: port, User: user, Password: password}
	if err := peer.Validate(); err != nil {
		return nil, err
	}
	return peer, nil
}
