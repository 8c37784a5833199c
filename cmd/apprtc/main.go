// Package main contains an entrypoint for running one direct call.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pion/apprtc-direct/pkg/call"
	log "github.com/pion/apprtc-direct/pkg/logger"
	"github.com/pion/apprtc-direct/pkg/signal"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// Config defines parameters for a call
type Config struct {
	call.Config `mapstructure:",squash"`
	Room        string           `mapstructure:"room"`
	Loopback    bool             `mapstructure:"loopback"`
	LogConfig   log.GlobalConfig `mapstructure:"log"`
}

var (
	conf           = Config{}
	file           string
	room           string
	metricsAddr    string
	verbosityLevel int

	logger = log.New()
)

const (
	portRangeLimit = 100
	reloadDelay    = 500 * time.Millisecond
)

func showHelp() {
	fmt.Printf("Usage:%s {params}\n", os.Args[0])
	fmt.Println("      -c {config file}")
	fmt.Println("      -room {peer ip[:port], 0.0.0.0 waits for the peer}")
	fmt.Println("      -m {metrics listen addr, empty disables}")
	fmt.Println("      -h (show help info)")
	fmt.Println("      -v {0-10} (verbosity level, default 0)")
}

func load() bool {
	_, err := os.Stat(file)
	if err != nil {
		logger.Error(err, "config file not found", "file", file)
		return false
	}

	viper.SetConfigFile(file)
	viper.SetConfigType("toml")

	err = viper.ReadInConfig()
	if err != nil {
		logger.Error(err, "config file read failed", "file", file)
		return false
	}
	err = viper.GetViper().Unmarshal(&conf)
	if err != nil {
		logger.Error(err, "config file loaded failed", "file", file)
		return false
	}

	if len(conf.WebRTC.ICEPortRange) != 0 && len(conf.WebRTC.ICEPortRange) != 2 {
		logger.Error(nil, "config file loaded failed. webrtc port must be [min,max]", "file", file)
		return false
	}

	if len(conf.WebRTC.ICEPortRange) != 0 &&
		(conf.WebRTC.ICEPortRange[1] < conf.WebRTC.ICEPortRange[0] || conf.WebRTC.ICEPortRange[1]-conf.WebRTC.ICEPortRange[0] < portRangeLimit) {
		logger.Error(nil, "config file loaded failed. webrtc port must be [min, max] and max - min >= portRangeLimit", "file", file, "portRangeLimit", portRangeLimit)
		return false
	}

	if err := conf.Negotiation.Validate(); err != nil {
		logger.Error(err, "config file loaded failed", "file", file)
		return false
	}

	logger.V(0).Info("Config file loaded", "file", file)
	return true
}

func parse() bool {
	flag.StringVar(&file, "c", "config.toml", "config file")
	flag.StringVar(&room, "room", "", "peer address, overrides the config file")
	flag.StringVar(&metricsAddr, "m", ":8100", "metrics to use")
	flag.IntVar(&verbosityLevel, "v", -1, "verbosity level, higher value - more logs")
	help := flag.Bool("h", false, "help info")
	flag.Parse()

	if !load() {
		return false
	}

	if *help {
		return false
	}
	if room != "" {
		conf.Room = room
	}
	return true
}

// watchConfig re-applies the log verbosity when the config file changes,
// unless -v pinned it.
func watchConfig() {
	debounced := debounce.New(reloadDelay)
	viper.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		debounced(func() {
			var lc log.GlobalConfig
			if err := viper.UnmarshalKey("log", &lc); err != nil {
				logger.Error(err, "config reload failed", "file", e.Name)
				return
			}
			if verbosityLevel < 0 {
				log.SetGlobalOptions(lc)
			}
			logger.Info("Config file reloaded", "file", e.Name, "v", log.Verbosity())
		})
	})
	viper.WatchConfig()
}

func serveMetrics(ctx context.Context, addr string) error {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Handler: m,
	}

	metricsLis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("cannot bind to metrics endpoint %s: %w", addr, err)
	}
	logger.Info("Metrics Listening", "addr", addr)

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	if err := srv.Serve(metricsLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	if !parse() {
		showHelp()
		os.Exit(-1)
	}

	// Check that the -v is not set (default -1)
	if verbosityLevel < 0 {
		log.SetGlobalOptions(conf.LogConfig)
	} else {
		log.SetGlobalOptions(log.GlobalConfig{V: verbosityLevel})
	}
	watchConfig()

	c, err := call.NewDirect(conf.Config)
	if err != nil {
		logger.Error(err, "failed to create call")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if metricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, metricsAddr)
		})
	}

	g.Go(func() error {
		sigs := make(chan os.Signal, 1)
		ossignal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		defer ossignal.Stop(sigs)
		select {
		case s := <-sigs:
			logger.Info("Signal received, hanging up", "signal", s.String())
		case <-ctx.Done():
		}
		c.Hangup()
		return nil
	})

	g.Go(func() error {
		defer cancel()
		<-c.Done()
		return c.Err()
	})

	logger.Info("--- Starting call ---", "call_id", c.ID(), "room", conf.Room)
	c.Start(signal.RoomParams{RoomID: conf.Room, Loopback: conf.Loopback})

	if err := g.Wait(); err != nil {
		logger.Error(err, "call ended with error")
		os.Exit(1)
	}
	logger.Info("Call ended", "call_id", c.ID())
}
