//go:build wireinject
// +build wireinject

package main

import (
	"buildinghub_backend/internal/announcement"
	"buildinghub_backend/internal/app"
	"buildinghub_backend/internal/audience"
	"buildinghub_backend/internal/calendar"
	"buildinghub_backend/internal/channel"
	"buildinghub_backend/internal/config"
	"buildinghub_backend/internal/email"
	"buildinghub_backend/internal/fanout"
	"buildinghub_backend/internal/firebase"
	"buildinghub_backend/internal/jobs"
	"buildinghub_backend/internal/middleware"
	"buildinghub_backend/internal/notification"
	"buildinghub_backend/internal/oplog"
	"buildinghub_backend/internal/poll"
	"buildinghub_backend/internal/property"
	"buildinghub_backend/internal/reorder"
	"buildinghub_backend/internal/user"

	"github.com/google/wire"
)

var platformSet = wire.NewSet(
	provideLogger,
	provideDatabase,
	provideRedis,
	provideElasticsearch,
	provideRecorder,
	wire.Bind(new(oplog.Recorder), new(*oplog.SinkRecorder)),
)

var deliverySet = wire.NewSet(
	email.NewTemplates,
	email.NewSMTPSender,
	wire.Bind(new(channel.Mailer), new(*email.SMTPSender)),
	channel.NewSenders,
	channel.NewDispatcher,
	wire.Bind(new(fanout.Dispatcher), new(*channel.Dispatcher)),
	notification.NewGORMRepository,
	notification.NewStore,
	wire.Bind(new(fanout.Emitter), new(*notification.Store)),
	audience.NewGORMDirectory,
	audience.NewResolver,
	wire.Bind(new(fanout.AudienceResolver), new(*audience.Resolver)),
	fanout.NewOrchestrator,
	wire.Bind(new(fanout.Publisher), new(*fanout.Orchestrator)),
)

// initializeServer is the main Wire injector.
func initializeServer(cfg *config.Config) (*app.Server, func(), error) {
	wire.Build(
		platformSet,
		firebase.NewFirebaseService,
		wire.Bind(new(middleware.TokenVerifier), new(*firebase.FirebaseService)),

		user.NewGORMRepository,
		wire.Bind(new(channel.ContactResolver), new(user.Repository)),
		user.NewService,
		wire.Bind(new(user.Service), new(*user.ServiceImplementation)),
		wire.Bind(new(middleware.UserResolver), new(*user.ServiceImplementation)),
		user.NewHandler,

		property.NewGORMRepository,
		property.NewAuthorizer,
		wire.Bind(new(fanout.BuildingAuthorizer), new(*property.Authorizer)),
		wire.Bind(new(poll.Authorizer), new(*property.Authorizer)),
		wire.Bind(new(calendar.Authorizer), new(*property.Authorizer)),
		wire.Bind(new(announcement.Authorizer), new(*property.Authorizer)),

		deliverySet,
		notification.NewService,
		wire.Bind(new(notification.Service), new(*notification.ServiceImplementation)),
		notification.NewHandler,
		fanout.NewHandler,

		reorder.NewLocker,
		poll.NewGORMRepository,
		providePollService,
		wire.Bind(new(poll.Service), new(*poll.ServiceImplementation)),
		poll.NewHandler,

		calendar.NewGORMRepository,
		calendar.NewService,
		wire.Bind(new(calendar.Service), new(*calendar.ServiceImplementation)),
		wire.Bind(new(jobs.ReminderSender), new(*calendar.ServiceImplementation)),
		calendar.NewHandler,
		jobs.NewCalendarReminderJob,

		announcement.NewGORMRepository,
		announcement.NewService,
		wire.Bind(new(announcement.Service), new(*announcement.ServiceImplementation)),
		announcement.NewHandler,

		wire.Struct(new(app.Handlers), "*"),
		app.NewServer,
	)
	return nil, nil, nil
}
