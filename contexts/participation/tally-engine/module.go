package tallyengine

import (
	"log/slog"

	httpadapter "agora/contexts/participation/tally-engine/adapters/http"
	"agora/contexts/participation/tally-engine/adapters/memory"
	"agora/contexts/participation/tally-engine/application/commands"
	"agora/contexts/participation/tally-engine/application/queries"
	"agora/contexts/participation/tally-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Votes   commands.VoteUseCase
	Ballots commands.BallotUseCase
	Results queries.ResultsUseCase
	Store   *memory.Store
}

type Dependencies struct {
	Votes    ports.VoteRepository
	Ballots  ports.BallotRepository
	Oracle   ports.MembershipOracle
	Resolver ports.DelegationResolver
	Outbox   ports.OutboxWriter
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

func NewModule(deps Dependencies) Module {
	voteUseCase := commands.VoteUseCase{
		Votes:  deps.Votes,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	ballotUseCase := commands.BallotUseCase{
		Votes:   deps.Votes,
		Ballots: deps.Ballots,
		Oracle:  deps.Oracle,
		Outbox:  deps.Outbox,
		Clock:   deps.Clock,
		IDGen:   deps.IDGen,
		Logger:  deps.Logger,
	}
	resultsUseCase := queries.ResultsUseCase{
		Votes:    deps.Votes,
		Ballots:  deps.Ballots,
		Oracle:   deps.Oracle,
		Resolver: deps.Resolver,
		Logger:   deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Votes:   voteUseCase,
			Ballots: ballotUseCase,
			Results: resultsUseCase,
			Logger:  deps.Logger,
		},
		Votes:   voteUseCase,
		Ballots: ballotUseCase,
		Results: resultsUseCase,
	}
}

func NewInMemoryModule(resolver ports.DelegationResolver, logger *slog.Logger) Module {
	store := memory.NewStore(nil)
	module := NewModule(Dependencies{
		Votes:    store,
		Ballots:  store,
		Oracle:   store,
		Resolver: resolver,
		Outbox:   store,
		Clock:    store,
		IDGen:    store,
		Logger:   logger,
	})
	module.Store = store
	return module
}
