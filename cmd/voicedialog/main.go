package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/workerpool"

	"github.com/ibsar/voicedialog/config"
	"github.com/ibsar/voicedialog/internal/api"
	"github.com/ibsar/voicedialog/internal/bridge"
	"github.com/ibsar/voicedialog/internal/connectutil"
	"github.com/ibsar/voicedialog/internal/logging"
	"github.com/ibsar/voicedialog/internal/sessions"
	"github.com/ibsar/voicedialog/pkg/backend"
	"github.com/ibsar/voicedialog/pkg/dialog"
	"github.com/ibsar/voicedialog/pkg/events"
	"github.com/ibsar/voicedialog/pkg/menu"
	"github.com/ibsar/voicedialog/pkg/nlu"
	"github.com/ibsar/voicedialog/pkg/notify"
	"github.com/ibsar/voicedialog/pkg/transcript"
)

const datastorePool = "__default__pool_name__"

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logCloser, err := logging.Setup(cfg.Logging())
	if err != nil {
		log.Fatalf("setting up logging: %v", err)
	}
	defer logCloser.Close()

	eventRef := cfg.GetEventsQueueName()
	eventURL := cfg.GetEventsQueueURL()

	opts := []frame.Option{
		frame.WithConfig(&cfg),
		frame.WithName("voicedialog"),
		frame.WithRegisterPublisher(eventRef, eventURL),
		frame.WithWorkerPoolOptions(
			workerpool.WithPoolCount(cfg.WorkerPoolCount),
			workerpool.WithSinglePoolCapacity(cfg.WorkerPoolCapacity),
		),
	}
	if cfg.RequireAuth {
		opts = append(opts, frame.WithRegisterServerOauth2Client())
	}
	if cfg.UsesDatastore() {
		opts = append(opts, frame.WithDatastore())
	}
	ctx, srv := frame.NewService(opts...)
	defer srv.Stop(ctx)

	pool, err := srv.WorkManager().GetPool()
	if err != nil {
		log.Fatalf("getting worker pool: %v", err)
	}
	// Blocking dialog work runs on the frame pool; overflow gets its own
	// goroutine.
	run := func(task func()) {
		if err := pool.Submit(ctx, task); err != nil {
			go task()
		}
	}

	pub := events.NewPublisher(srv.QueueManager(), "voicedialog", eventRef)
	defer pub.Close()

	stats := events.NewStats()
	go stats.Follow(ctx, pub.Subscribe("stats", 256))

	// --- Menus ---
	loader := menu.NewLoader(cfg.MenuDir)
	if _, err := loader.Load(); err != nil {
		log.Fatalf("loading menus: %v", err)
	}
	loader.OnReload(func(r *menu.Registry) {
		if err := pub.Emit(ctx, events.MenuReloaded, "", &events.MenuReloadedData{Locations: r.Locations()}); err != nil {
			slog.WarnContext(ctx, "menu reload event failed", slog.String("error", err.Error()))
		}
	})
	go func() {
		if err := loader.WatchAndReload(ctx.Done()); err != nil {
			slog.ErrorContext(ctx, "menu watcher stopped", slog.String("error", err.Error()))
		}
	}()

	// --- Journal and classifier ---
	var db transcript.DB
	if cfg.UsesDatastore() {
		db = srv.DatastoreManager().GetPool(ctx, datastorePool)
	}
	var journal transcript.Store
	if cfg.JournalDriver != "none" {
		journal, err = transcript.Open(ctx, cfg.JournalDriver, cfg.Journal(db))
		if err != nil {
			log.Fatalf("opening transcript journal: %v", err)
		}
		defer journal.Close()
	}

	classifier, err := nlu.Open(ctx, cfg.Classifier, cfg.NLU())
	if err != nil {
		log.Fatalf("opening classifier: %v", err)
	}

	// --- Event endpoints ---
	var endpoints notify.Store
	var subscribers []frame.Option
	switch cfg.NotifyStore {
	case "memory":
		endpoints = notify.NewMemoryStore()
	case "sql":
		endpoints, err = notify.NewSQLStore(ctx, srv.DatastoreManager().GetPool(ctx, datastorePool))
		if err != nil {
			log.Fatalf("opening endpoint store: %v", err)
		}
	}
	if endpoints != nil {
		dispatcher := &notify.Dispatcher{
			Store:     endpoints,
			Deliverer: notify.NewDeliverer(endpoints, cfg.Notify(), run),
			Run:       run,
		}
		subscribers = append(subscribers, frame.WithRegisterSubscriber(eventRef+".notify", eventURL, dispatcher))
	}

	// --- Backend ---
	httpClient := &http.Client{Timeout: time.Duration(cfg.BackendTimeoutSec) * time.Second}
	breaker := backend.NewBreaker(backend.BreakerConfig{
		FailureThreshold: cfg.BreakerFailures,
		ResetTimeout:     time.Duration(cfg.BreakerResetSec) * time.Second,
	})
	newBackend := func() dialog.Backend {
		return backend.NewClient(cfg.BackendURL,
			backend.WithHTTPClient(httpClient),
			backend.WithBreaker(breaker),
			backend.WithCatalogTTL(time.Duration(cfg.CatalogTTLSec)*time.Second),
		)
	}

	// --- Sessions ---
	store := sessions.NewStore(time.Duration(cfg.SessionIdleMinutes) * time.Minute)
	store.StartReaper(ctx, dialog.Go)

	var dialogJournal dialog.Journal
	if journal != nil {
		dialogJournal = journal
	}
	bridgeSrv, err := bridge.NewServer(bridge.Options{
		Dialog:         cfg.Dialog(),
		NewBackend:     newBackend,
		Menus:          loader,
		Classifier:     classifier,
		Journal:        dialogJournal,
		Publisher:      pub,
		Runner:         run,
		Sessions:       store,
		AllowedOrigins: splitList(cfg.AllowedOrigins),
	})
	if err != nil {
		log.Fatalf("creating bridge: %v", err)
	}

	// --- HTTP Mux ---
	apiOpts := []api.Option{api.WithStats(stats)}
	if journal != nil {
		apiOpts = append(apiOpts, api.WithJournal(journal))
	}
	if endpoints != nil {
		apiOpts = append(apiOpts, api.WithEndpoints(endpoints, cfg.Notify().URLOptions...))
	}
	apiMux := http.NewServeMux()
	api.NewHandler(store, loader, apiOpts...).Mount(apiMux, connectutil.DefaultOptions()...)

	var apiHandler http.Handler = apiMux
	if cfg.RequireAuth {
		apiHandler = connectutil.AuthenticatedHTTPMiddleware(apiMux, srv.SecurityManager().GetAuthenticator(ctx))
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.BridgePath, bridgeSrv)
	mux.Handle("/", apiHandler)

	srv.Init(ctx, append(subscribers, frame.WithHTTPHandler(connectutil.H2CHandler(mux)))...)

	slog.InfoContext(ctx, "voice dialog service starting",
		slog.String("bridge", cfg.BridgePath),
		slog.String("classifier", cfg.Classifier),
		slog.String("journal", cfg.JournalDriver),
		slog.String("endpoints", cfg.NotifyStore))
	if err := srv.Run(ctx, ""); err != nil {
		log.Fatalf("service exited: %v", err)
	}
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
