// Package serve implements the "serve" CLI subcommand: it wires every
// collaborator (store, chat, archive host, sources) into a Scheduler and
// runs until an OS signal requests shutdown.
package serve

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"priconne-watch/internal/archive"
	"priconne-watch/internal/chat"
	"priconne-watch/internal/conf"
	"priconne-watch/internal/errors"
	"priconne-watch/internal/fuse"
	"priconne-watch/internal/httpclient"
	"priconne-watch/internal/logging"
	"priconne-watch/internal/model"
	"priconne-watch/internal/pipeline"
	"priconne-watch/internal/resource"
	"priconne-watch/internal/scheduler"
	"priconne-watch/internal/store"
	"priconne-watch/internal/tagger"
)

// Command builds the "serve" subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and command listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings)
		},
	}
}

func run(ctx context.Context, settings *conf.Settings) error {
	logging.Init()
	log := logging.ForService("serve")

	st, err := store.Open(ctx, settings.Mongo.ConnectionString, settings.Mongo.Database)
	if err != nil {
		return errors.NewBuilder(err).Component("serve").Category(errors.CategoryConfiguration).Build()
	}
	defer st.Close(context.Background())

	httpClient := httpclient.New(&httpclient.Config{
		UserAgent: settings.Client.UserAgent,
		Proxy:     settings.Client.Proxy,
		NoProxy:   settings.Client.NoProxy,
	})
	defer httpClient.Close()

	chatClient := chat.New(settings.Telegram.Token)
	archiveHost := archive.New(archive.Config{
		ShortName:   settings.Telegraph.ShortName,
		AccessToken: settings.Telegraph.AccessToken,
		AuthorName:  settings.Telegraph.AuthorName,
		AuthorURL:   settings.Telegraph.AuthorURL,
	}, httpClient)

	tag, err := tagger.Compile(settings.SortedTagNames(), settings.Tags)
	if err != nil {
		return errors.NewBuilder(err).Component("serve").Category(errors.CategoryConfiguration).Build()
	}

	recipients := pipeline.Recipients{
		Debug:   settings.Telegram.Recipient.Debug,
		Post:    settings.Telegram.Recipient.Post,
		Cartoon: settings.Telegram.Recipient.Cartoon,
	}

	streams := buildStreams(settings, httpClient)

	errSink := func(source string, err error) {
		log.Error("source tick failed", "source", source, "error", err)
	}
	sched := scheduler.New(errSink, log)

	for name, stream := range streams {
		handler := makeHandler(st, chatClient, archiveHost, tag, recipients, settings, name, stream, sched, log)
		exprs := settings.Fetch.Schedule[name]
		if len(exprs) == 0 {
			continue
		}
		if err := sched.Register(name, exprs, handler); err != nil {
			return err
		}
	}

	sched.Start()
	log.Info("scheduler started")

	var cmdSrv *http.Server
	if settings.Telegram.ListenAddr != "" {
		cmdSrv = startCommandListener(settings.Telegram.ListenAddr, sched, log)
		log.Info("command listener started", "addr", settings.Telegram.ListenAddr)
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	log.Info("shutting down, waiting for in-flight handlers")
	if cmdSrv != nil {
		_ = cmdSrv.Shutdown(context.Background())
	}
	sched.Stop()
	return nil
}

// startCommandListener serves the chat webhook: a "/run <source>" bot
// command triggers the named source immediately, through the same
// per-source mutex as the scheduled path.
func startCommandListener(addr string, sched *scheduler.Scheduler, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update struct {
			Message struct {
				Text string `json:"text"`
			} `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		text := strings.TrimSpace(update.Message.Text)
		if name, ok := strings.CutPrefix(text, "/run "); ok {
			if err := sched.Trigger(strings.TrimSpace(name)); err != nil {
				log.Warn("manual trigger rejected", "source", name, "error", err)
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("command listener failed", "error", err)
		}
	}()
	return srv
}

// buildStreams constructs one resource.Stream per configured source.
func buildStreams(settings *conf.Settings, client *httpclient.Client) map[string]resource.Stream {
	streams := make(map[string]resource.Stream)
	for _, api := range settings.Fetch.Server.API {
		streams[api.ID] = resource.NewAPIStream(api.ID, api.URL, client)
	}
	if settings.Fetch.Server.News != "" {
		streams["website"] = resource.NewWebsiteStream(settings.Fetch.Server.News, client)
	}
	if len(settings.Fetch.Server.API) > 0 {
		streams["cartoon"] = resource.NewCartoonStream(settings.Fetch.Server.API[0].URL, client)
	}
	return streams
}

// makeHandler closes over one source's collaborators and returns a
// scheduler.Handler that drains the stream through the fuse comparator
// and publishes every admitted item.
func makeHandler(
	st *store.Store,
	chatClient *chat.Chat,
	archiveHost *archive.Host,
	tag *tagger.Tagger,
	recipients pipeline.Recipients,
	settings *conf.Settings,
	name string,
	stream resource.Stream,
	sched *scheduler.Scheduler,
	log *slog.Logger,
) scheduler.Handler {
	return func(ctx context.Context) error {
		strategy := fuse.Strategy(settings.Fetch.Strategy.For(name))
		p := &pipeline.Pipeline{
			Store:      st,
			Chat:       chatClient,
			Archive:    archiveHost,
			Tagger:     tag,
			Recipients: recipients,
			Region:     model.RegionJP,
			SilentIf:   settings.Telegram.Silent,
		}

		source := stream.SourceKind()
		items, streamErr := drainAndFuse(ctx, stream, strategy, st, source)

		// Items collected before a mid-stream error are still published;
		// the error is surfaced once the batch is done.
		for _, result := range items {
			select {
			case <-sched.Stopping():
				log.Info("shutdown requested, abandoning rest of batch", "source", name)
				return streamErr
			default:
			}
			if err := p.Publish(ctx, stream, result); err != nil {
				log.Error("publish failed, continuing with peers", "source", name, "id", result.Item.ID, "error", err)
				continue
			}
			if err := st.UpsertMetadata(ctx, source, result.Item); err != nil {
				log.Error("metadata persist failed", "source", name, "id", result.Item.ID, "error", err)
			}
		}
		return streamErr
	}
}

// drainAndFuse pages through the Metadata Stream on demand; the next
// page is fetched only once the current one is exhausted, feeding items
// to the Fuse Comparator until it trips or the stream ends.
func drainAndFuse(ctx context.Context, stream resource.Stream, strategy fuse.Strategy, st *store.Store, source model.SourceKind) ([]model.FindResult, error) {
	// HasMore starts true so the first next() call fetches page one.
	current := resource.Page{HasMore: true}
	var index int
	var streamErr error
	exhausted := false

	next := func() (model.Metadata, bool) {
		for {
			if index < len(current.Items) {
				m := current.Items[index]
				index++
				return m, true
			}
			if exhausted || !current.HasMore {
				exhausted = true
				return model.Metadata{}, false
			}
			page, err := stream.Next(ctx)
			if err != nil {
				streamErr = err
				exhausted = true
				return model.Metadata{}, false
			}
			current = page
			index = 0
			if len(current.Items) == 0 && !current.HasMore {
				exhausted = true
				return model.Metadata{}, false
			}
		}
	}

	lookup := func(id int32) (model.Metadata, bool) {
		m, found, err := st.LastMetadata(ctx, source, id)
		if err != nil {
			return model.Metadata{}, false
		}
		return m, found
	}

	results := fuse.Run(strategy, next, lookup)
	if streamErr != nil {
		return results, streamErr
	}
	return results, nil
}
