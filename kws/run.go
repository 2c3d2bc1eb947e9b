package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/itohio/gokws/pkg/metrics"
	"github.com/itohio/gokws/pkg/output"
	"github.com/itohio/gokws/pkg/recognizer"
)

func newRunCommand(a *app) *cobra.Command {
	var (
		device        string
		port          string
		wavPath       string
		metricsAddr   string
		frameFeatures bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Recognize words from a sampling device",
		Long: `Run connects to a sampling device and prints one line per recognized word:

  msg:word length: <frames>
  msg:word: <label>
  msg:dtw: <label>, <cost>

A stat line with throughput and phase timings follows every stat interval.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				a.cfg.Serial.Port = port
			}
			if wavPath != "" {
				a.cfg.WAV.Path = wavPath
			}
			if metricsAddr != "" {
				a.cfg.Metrics.Address = metricsAddr
			}
			if cmd.Flags().Changed("frame-features") {
				a.cfg.Output.FrameFeatures = frameFeatures
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.run(ctx, device, cmd)
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", deviceSerial, "Sampling device: serial, mock, wav, portaudio")
	cmd.Flags().StringVarP(&port, "port", "p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
	cmd.Flags().StringVar(&wavPath, "wav", "", "WAV file for the wav device")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address (e.g., :9100)")
	cmd.Flags().BoolVar(&frameFeatures, "frame-features", false, "Print an mfcc line for every frame")
	return cmd
}

func (a *app) run(ctx context.Context, deviceName string, cmd *cobra.Command) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	v, err := a.vocabulary()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	dev, err := a.openDevice(deviceName)
	if err != nil {
		return err
	}

	rec, err := recognizer.New(a.cfg, nil, v,
		recognizer.WithLogger(a.logger),
		recognizer.WithSink(output.NewWriter(cmd.OutOrStdout())),
		recognizer.WithIndicator(output.NewDeviceIndicator(dev)),
		recognizer.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.Metrics.Address != "" {
		srv := &http.Server{
			Addr:              a.cfg.Metrics.Address,
			Handler:           metricsMux(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("serving metrics", "address", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("error stopping metrics server", "error", err)
			}
		}()
	}

	dev.OnConversion(rec.Mailbox().Convert)
	if err := dev.Connect(); err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			a.logger.Warn("error closing device", "error", err)
		}
	}()
	a.logger.Info("device connected", "device", deviceName, "conversion_rate", a.cfg.ConversionRate())

	// A device that stops producing ends the run.
	go func() {
		select {
		case <-dev.Done():
			a.logger.Info("device stopped")
			cancel()
		case <-ctx.Done():
		}
	}()

	err = rec.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func metricsMux(g prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))
	return mux
}
