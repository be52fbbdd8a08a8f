package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/csouto/channel-scout/internal/api"
	"github.com/csouto/channel-scout/internal/cache"
	"github.com/csouto/channel-scout/internal/clock/system"
	"github.com/csouto/channel-scout/internal/crawl"
	"github.com/csouto/channel-scout/internal/export"
	"github.com/csouto/channel-scout/internal/history"
	"github.com/csouto/channel-scout/internal/master"
	"github.com/csouto/channel-scout/internal/metrics"
	"github.com/csouto/channel-scout/internal/progress"
	"github.com/csouto/channel-scout/internal/scout"
	"github.com/csouto/channel-scout/internal/youtube"
)

var (
	crawlRegions    []string
	crawlMaxResults int
	crawlMaxCalls   int
	crawlFormat     string
	crawlListen     string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <term> [term...]",
	Short: "Run one discovery session over the given search terms",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCrawl,
}

func init() {
	crawlCmd.Flags().StringSliceVar(&crawlRegions, "regions", nil, "region codes to search per term (default: no region scoping)")
	crawlCmd.Flags().IntVar(&crawlMaxResults, "max-results", 0, "results per search call, 1..50")
	crawlCmd.Flags().IntVar(&crawlMaxCalls, "max-calls", 0, "search call ceiling for the session")
	crawlCmd.Flags().StringVar(&crawlFormat, "format", "", "export format, csv or xlsx")
	crawlCmd.Flags().StringVar(&crawlListen, "listen", "", "serve status endpoints on this address, e.g. 127.0.0.1:8650")
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, terms []string) error {
	if cfg.API.Key == "" {
		return fmt.Errorf("api key is required (set SCOUT_API_KEY or api.key)")
	}
	metrics.Init()

	regions := crawlRegions
	if len(regions) == 0 {
		regions = cfg.Crawl.Regions
	}
	maxResults := crawlMaxResults
	if maxResults == 0 {
		maxResults = cfg.Crawl.MaxResults
	}
	maxCalls := crawlMaxCalls
	if maxCalls == 0 {
		maxCalls = cfg.Crawl.MaxSearchCalls
	}
	format := crawlFormat
	if format == "" {
		format = cfg.Export.Format
	}
	listen := crawlListen
	if listen == "" {
		listen = cfg.Server.Listen
	}

	clock := system.New()
	store := history.New(cfg.History.Path, clock, logger, history.Options{
		Cooldown: time.Duration(cfg.Cleanup.CooldownDays) * 24 * time.Hour,
	})
	channelCache := cache.New(store)
	ledger := master.New(cfg.Master.Path, clock, logger)
	exporter := export.NewWriter(cfg.Export.Dir, logger)

	client, err := youtube.NewClient(youtube.Options{
		APIKey:  cfg.API.Key,
		Timeout: cfg.APITimeout(),
		RPS:     cfg.API.RPS,
		Burst:   cfg.API.Burst,
		Uploads: channelCache,
		Clock:   clock,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	hub := progress.NewHub(logger, progress.NewLogSink(logger), progress.MetricsSink{})
	defer hub.Close()

	orch := crawl.New(client, channelCache, store, ledger, exporter, hub, clock, logger, crawl.Config{
		Terms:          terms,
		Regions:        regions,
		MaxResults:     maxResults,
		MaxSearchCalls: maxCalls,
		Format:         format,
		AutoCleanup:    cfg.Cleanup.AutoEnabled,
		MaxAgeDays:     cfg.Cleanup.MaxAgeDays,
	})

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if listen != "" {
		server := api.NewServer(listen, orch, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	result, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Session %s %s: %d channels, %d search calls, %d quota units\n",
		result.SessionID, result.State, result.Channels, result.SearchCalls, result.QuotaUsed)
	if result.Exported != "" {
		fmt.Println("Exported to", result.Exported)
	}
	if result.Message != "" {
		fmt.Println(result.Message)
	}
	if result.State == scout.StateStopped {
		fmt.Println("Session stopped before finishing all term/region pairs.")
	}
	return nil
}
