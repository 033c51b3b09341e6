package main

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"eventshare-engine/internal/httpapi"
	"eventshare-engine/internal/logger"
	asynqmod "eventshare-engine/pkg/asynq"
	"eventshare-engine/pkg/config"
	"eventshare-engine/pkg/db"
	"eventshare-engine/pkg/gen"
	"eventshare-engine/pkg/objectstore"
	"eventshare-engine/pkg/redis"
	"eventshare-engine/pkg/server"
	"eventshare-engine/services/dedup"
	"eventshare-engine/services/entitlement"
	"eventshare-engine/services/event"
	"eventshare-engine/services/media"
	"eventshare-engine/services/quota"
	"eventshare-engine/services/reminder"
	"eventshare-engine/services/reservation"
	"eventshare-engine/services/retention"
	"eventshare-engine/services/usage"
)

func migrate(g *gorm.DB) error {
	return g.AutoMigrate(
		&event.Event{},
		&event.GuestbookEntry{},
		&event.DesignAsset{},
		&entitlement.EventEntitlement{},
		&entitlement.PackageDefinition{},
		&media.Item{},
		&reservation.UploadReservation{},
		&reminder.Log{},
	)
}

func main() {
	app := fx.New(
		logger.Module,
		config.Module,
		gen.Module,
		db.Module,
		redis.Module,
		objectstore.Module,
		asynqmod.Client,
		asynqmod.Server,

		entitlement.Module,
		usage.Module,
		quota.Module,
		fx.Provide(
			func(g *quota.Gate) media.AdmissionGate { return g },
			func(g *quota.Gate) reservation.AdmissionGate { return g },
		),
		media.Module,
		dedup.Module,
		dedup.TaskModule,
		reservation.Module,
		retention.Module,
		reminder.Module,

		httpapi.Module,
		server.Module,

		fx.Invoke(
			migrate,
			db.Otel,
			db.Metric,
		),
	)

	app.Run()
}
