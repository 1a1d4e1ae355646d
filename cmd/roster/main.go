package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	roomroster "github.com/matrix-org/room-roster"
	"github.com/matrix-org/room-roster/avatar"
	"github.com/matrix-org/room-roster/internal"
	"github.com/matrix-org/room-roster/pubsub"
	"github.com/matrix-org/room-roster/roster"
	"github.com/matrix-org/room-roster/store"
)

var Version = "0.1.0"

var (
	flagHomeserver  = flag.String("server", "", "The homeserver to fetch avatar thumbnails from")
	flagBindAddr    = flag.String("port", ":8019", "Bind address")
	flagPostgres    = flag.String("db", "", "Postgres DB connection string for avatars/snapshots; empty = memory only (see lib/pq docs)")
	flagProfile     = flag.String("profile", "default", "Profile ID used to key roster snapshots")
	flagOTLPURL     = flag.String("otlp", "", "OTLP HTTP URL to send traces to; empty = tracing disabled")
	flagSentryDSN   = flag.String("sentry", "", "Sentry DSN to report errors to; empty = reporting disabled")
	flagSortInvites = flag.Bool("sort-invites", false, "Include pending invites in last-message ordering")
)

func main() {
	flag.Parse()
	if *flagHomeserver == "" {
		flag.Usage()
		os.Exit(1)
	}

	if *flagSentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: *flagSentryDSN}); err != nil {
			panic(err)
		}
	}
	if *flagOTLPURL != "" {
		if err := internal.ConfigureOTLP(*flagOTLPURL, "", "", Version); err != nil {
			panic(err)
		}
	}

	var storage *store.Storage
	var avatarStore avatar.Store
	if *flagPostgres != "" {
		storage = store.NewStorage(*flagPostgres)
		avatarStore = storage.AvatarTable
	}
	cache := avatar.NewCache(avatarStore)
	loader := avatar.NewLoader(&avatar.HTTPClient{
		Client:        &http.Client{Timeout: 60 * time.Second},
		HomeserverURL: *flagHomeserver,
	}, cache)

	ps := pubsub.NewPubSub(64)
	notifier := pubsub.NewPromNotifier(ps, "roster")

	rst := roster.New(roster.Config{
		IncludeInvitesInOrder: *flagSortInvites,
	}, notifier, loader)

	sub := pubsub.NewRosterSub(ps, roomroster.DebugListener{})
	go sub.Listen()

	if storage != nil {
		if snapshot, err := storage.SnapshotTable.SelectSnapshot(*flagProfile); err == nil && len(snapshot) > 0 {
			if err := rst.Restore(snapshot); err != nil {
				sentry.CaptureException(err)
			}
		}
		go persistSnapshots(rst, storage, *flagProfile)
	}

	roomroster.RunRosterServer(rst, *flagBindAddr)
}

func persistSnapshots(rst *roster.Roster, storage *store.Storage, profileID string) {
	for range time.Tick(time.Minute) {
		snapshot, err := rst.Snapshot()
		if err != nil {
			sentry.CaptureException(err)
			continue
		}
		if err := storage.SnapshotTable.UpdateSnapshot(profileID, snapshot); err != nil {
			sentry.CaptureException(err)
		}
	}
}
