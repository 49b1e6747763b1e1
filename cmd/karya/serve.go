package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rahul/karya/internal/gateway"
	"github.com/rahul/karya/internal/observability"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve goals from the enabled chat gateways",
	RunE: func(cmd *cobra.Command, args []string) error {
		observability.PrintBanner(os.Stdout)

		// Route all log output through the terminal mutex so it never
		// interrupts the live status line.
		log.SetOutput(observability.NewTermWriter())

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, observability.NewTermWriter())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var gateways []gateway.Messenger
		if tgCfg, ok := cfg.Gateway("telegram"); ok {
			tg, err := gateway.NewTelegramGateway(ctx, tgCfg.Token, a.pipe)
			if err != nil {
				return err
			}
			gateways = append(gateways, tg)
		}
		if dcCfg, ok := cfg.Gateway("discord"); ok {
			dc, err := gateway.NewDiscordGateway(ctx, dcCfg.Token, a.pipe)
			if err != nil {
				return err
			}
			gateways = append(gateways, dc)
		}
		if len(gateways) == 0 {
			return errors.New("no gateway is enabled with a token")
		}

		// Live status line (1-second updates)
		go func() {
			ticker := time.NewTicker(1 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					observability.PrintLiveStatus()
				}
			}
		}()

		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					observability.Heartbeat()
					a.logger.LogHeartbeat()
				}
			}
		}()

		for _, g := range gateways {
			go func(g gateway.Messenger) {
				if err := g.Start(); err != nil {
					log.Printf("[ FAIL ] gateway error: %v", err)
					stop()
				}
			}(g)
		}

		<-ctx.Done()
		for _, g := range gateways {
			if err := g.Stop(); err != nil {
				log.Printf("Warning: failed to stop gateway: %v", err)
			}
		}

		// Give a short time for final logs/syncs
		time.Sleep(500 * time.Millisecond)
		log.Println("[ EXIT ] shut down.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
