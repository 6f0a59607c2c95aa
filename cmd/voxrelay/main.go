package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/leonardotrapani/voxrelay/internal/client"
	"github.com/leonardotrapani/voxrelay/internal/config"
	"github.com/leonardotrapani/voxrelay/internal/logging"
	"github.com/leonardotrapani/voxrelay/internal/metrics"
	"github.com/leonardotrapani/voxrelay/internal/relay"
)

const version = "0.1.0"

func main() {
	_ = rootCmd.Execute()
}

var rootCmd = &cobra.Command{
	Use:   "voxrelay",
	Short: "Live speech transcription relay",
}

func init() {
	rootCmd.AddCommand(
		serveCmd(),
		streamCmd(),
		versionCmd(),
	)
}

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			log := logging.Named("relay")

			manager, err := config.NewManager(configPath, logging.Named("config"))
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := manager.StartWatching(ctx); err != nil {
				log.Warnw("config watching disabled", "err", err)
			}
			defer manager.Stop()

			m := metrics.New(prometheus.DefaultRegisterer)
			if port := manager.Get().Server.MetricsPort; port > 0 {
				ms := metrics.NewServer(port, logging.Named("metrics"))
				go func() {
					if err := ms.Run(ctx); err != nil {
						log.Warnw("metrics server stopped", "err", err)
					}
				}()
			}

			srv := relay.NewServer(manager, m, log)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.toml", "path to the TOML config file")
	return cmd
}

func streamCmd() *cobra.Command {
	var (
		url      string
		rate     int
		language string
	)

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream raw s16le mono PCM from stdin and print the live transcript",
		Long: `Reads raw signed 16-bit little-endian mono PCM from stdin, streams it
to a running relay and prints transcript updates as they arrive. A
headless stand-in for the browser page, e.g.:

  arecord -f S16_LE -r 48000 -c 1 -t raw | voxrelay stream --rate 48000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				return fmt.Errorf("failed to connect to relay %s: %w", url, err)
			}

			c := client.New(conn, client.Options{Language: language})
			if err := c.Start(); err != nil {
				conn.Close()
				return err
			}

			printerDone := make(chan struct{})
			go func() {
				defer close(printerDone)
				for update := range c.Updates() {
					fmt.Printf("\r\033[K%s", update)
				}
			}()

			if err := feedStdin(c, rate); err != nil {
				c.Close()
				return err
			}

			// capture ended: push the tail and give late fragments
			// a moment to arrive
			_ = c.Stop()
			select {
			case <-printerDone:
			case <-time.After(3 * time.Second):
			}
			_ = c.Close()
			<-printerDone

			fmt.Printf("\r\033[K%s\n", c.Transcript())
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws", "relay websocket URL")
	cmd.Flags().IntVar(&rate, "rate", 48000, "input sample rate in Hz")
	cmd.Flags().StringVar(&language, "language", "", "transcription language code (empty for auto-detect)")
	return cmd
}

// feedStdin converts s16le PCM from stdin to float samples and feeds them
// to the controller until EOF.
func feedStdin(c *client.Controller, rate int) error {
	reader := bufio.NewReaderSize(os.Stdin, 1<<16)
	buf := make([]byte, 8192)

	for {
		n, err := io.ReadFull(reader, buf)
		if n > 0 {
			samples := make([]float32, n/2)
			for i := range samples {
				v := int16(binary.LittleEndian.Uint16(buf[i*2:]))
				samples[i] = float32(v) / 32768
			}
			if feedErr := c.Feed(samples, rate); feedErr != nil {
				return fmt.Errorf("failed to send audio: %w", feedErr)
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}
